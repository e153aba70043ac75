// Package logs provides structured JSON logger.
package logs

import (
	"fmt"
	"runtime"

	"github.com/labstack/gommon/log"
)

// Logger writes JSON log lines with attached fields.
//
// Logger implements echo.Logger so the same instance can be used
// by HTTP server and by the rest of application.
type Logger struct {
	*log.Logger
	fields []any
}

// NewLogger creates a new instance of logger.
func NewLogger() *Logger {
	return &Logger{Logger: log.New("")}
}

// With returns child logger that attaches specified fields to every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger,
		fields: append(args, l.fields...),
	}
}

func (l *Logger) Debug(args ...any) {
	l.write(log.DEBUG, newLogLine(args...))
}

func (l *Logger) Info(args ...any) {
	l.write(log.INFO, newLogLine(args...))
}

func (l *Logger) Warn(args ...any) {
	l.write(log.WARN, newLogLine(args...))
}

func (l *Logger) Error(args ...any) {
	l.write(log.ERROR, newLogLine(args...))
}

func (l *Logger) Fatal(args ...any) {
	l.write(log.OFF, newLogLine(args...))
}

func (l *Logger) Debugj(line log.JSON) {
	l.write(log.DEBUG, line)
}

func (l *Logger) Infoj(line log.JSON) {
	l.write(log.INFO, line)
}

func (l *Logger) Warnj(line log.JSON) {
	l.write(log.WARN, line)
}

func (l *Logger) Errorj(line log.JSON) {
	l.write(log.ERROR, line)
}

func (l *Logger) Fatalj(line log.JSON) {
	l.write(log.OFF, line)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.write(log.DEBUG, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Infof(format string, args ...any) {
	l.write(log.INFO, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.write(log.WARN, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.write(log.ERROR, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.write(log.OFF, newLogLine(fmt.Sprintf(format, args...)))
}

// write should be called directly from exported methods,
// otherwise caller file will be resolved incorrectly.
func (l *Logger) write(lvl log.Lvl, line log.JSON) {
	setBaseLogLine(line)
	setLogLine(line, l.fields...)
	switch lvl {
	case log.DEBUG:
		l.Logger.Debugj(line)
	case log.INFO:
		l.Logger.Infoj(line)
	case log.WARN:
		l.Logger.Warnj(line)
	case log.ERROR:
		l.Logger.Errorj(line)
	default:
		l.Logger.Fatalj(line)
	}
}

// LogField represents named field of log line.
type LogField struct {
	Name  string
	Value any
}

// Any creates field with specified name and value.
func Any(name string, value any) LogField {
	return LogField{Name: name, Value: value}
}

func newLogLine(args ...any) log.JSON {
	line := log.JSON{}
	setLogLine(line, args...)
	return line
}

func setBaseLogLine(line log.JSON) {
	_, file, no, _ := runtime.Caller(3)
	line["file"] = fmt.Sprintf("%s:%d", file, no)
}

func setLogLine(line log.JSON, args ...any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case string:
			line["message"] = v
		case LogField:
			line[v.Name] = v.Value
		case []LogField:
			for _, field := range v {
				line[field.Name] = field.Value
			}
		case error:
			line["error"] = v.Error()
		default:
			panic(fmt.Errorf("unsupported type: %T", arg))
		}
	}
}
