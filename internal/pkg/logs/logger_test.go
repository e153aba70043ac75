package logs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/labstack/gommon/log"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetHeader(`{"level":"${level}"}`)
	logger.SetLevel(log.DEBUG)
	child := logger.With(Any("session", "abc"))
	child.Info("Session started", Any("participants", 2))
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal("Error:", err)
	}
	if line["message"] != "Session started" {
		t.Fatalf("Expected message, got: %v", line["message"])
	}
	if line["session"] != "abc" {
		t.Fatalf("Expected session field, got: %v", line["session"])
	}
	if v, ok := line["participants"].(float64); !ok || v != 2 {
		t.Fatalf("Expected participants field, got: %v", line["participants"])
	}
	if _, ok := line["file"]; !ok {
		t.Fatal("Expected file field")
	}
	buf.Reset()
	logger.Warn(fmt.Errorf("test error"))
	line = nil
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal("Error:", err)
	}
	if line["error"] != "test error" {
		t.Fatalf("Expected error field, got: %v", line["error"])
	}
}

func TestLoggerUnsupportedArg(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic")
		}
	}()
	logger := NewLogger()
	logger.Info(42)
}
