// Package config contains application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/labstack/gommon/log"
)

// Version contains version of Duel.
//
// Value is overridden at build time.
var Version = "development"

// Config stores configuration for Duel server.
type Config struct {
	// DB contains database connection config.
	DB DB `json:"db"`
	// SocketFile contains path to socket.
	SocketFile string `json:"socket_file,omitempty"`
	// Server contains API server config.
	Server *Server `json:"server,omitempty"`
	// Storage contains configuration for archive of submitted code.
	Storage *Storage `json:"storage,omitempty"`
	// Judge contains configuration of external judge service.
	Judge *Judge `json:"judge,omitempty"`
	// Session contains session and tournament tuning.
	Session Session `json:"session,omitempty"`
	// LogLevel contains level of logging.
	LogLevel LogLevel `json:"log_level,omitempty"`
}

// LogLevel represents level of logging.
type LogLevel log.Lvl

func (l LogLevel) MarshalText() ([]byte, error) {
	switch log.Lvl(l) {
	case log.DEBUG:
		return []byte("debug"), nil
	case log.INFO:
		return []byte("info"), nil
	case log.WARN:
		return []byte("warn"), nil
	case log.ERROR:
		return []byte("error"), nil
	case log.OFF:
		return []byte("off"), nil
	default:
		return nil, fmt.Errorf("unknown level: %d", l)
	}
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "debug":
		*l = LogLevel(log.DEBUG)
	case "info":
		*l = LogLevel(log.INFO)
	case "warn":
		*l = LogLevel(log.WARN)
	case "error":
		*l = LogLevel(log.ERROR)
	case "off":
		*l = LogLevel(log.OFF)
	default:
		return fmt.Errorf("unknown level: %q", s)
	}
	return nil
}

// Server contains server config.
type Server struct {
	// Host contains server host.
	Host string `json:"host"`
	// Port contains server port.
	Port int `json:"port"`
}

// Address returns string representation of server address.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Judge contains configuration of external judge service.
type Judge struct {
	// URL contains base URL of judge service.
	URL string `json:"url"`
	// Timeout contains timeout of single judge request in seconds.
	Timeout int `json:"timeout,omitempty"`
	// BatchSize contains amount of test cases sent in single request.
	//
	// Zero means that all test cases are sent in one request.
	BatchSize int `json:"batch_size,omitempty"`
}

// GetTimeout returns judge request timeout.
func (j Judge) GetTimeout() time.Duration {
	if j.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(j.Timeout) * time.Second
}

// Session contains tuning of session lifecycle.
type Session struct {
	// MinParticipants contains minimal amount of participants for start.
	MinParticipants int `json:"min_participants,omitempty"`
	// ProblemsPerSession contains amount of randomly assigned problems.
	ProblemsPerSession int `json:"problems_per_session,omitempty"`
	// Duration contains default session duration in seconds.
	Duration int64 `json:"duration,omitempty"`
	// RetryBudget contains amount of retries for lost races.
	RetryBudget int `json:"retry_budget,omitempty"`
	// ExpireInterval contains interval of timeout sweep in seconds.
	ExpireInterval int `json:"expire_interval,omitempty"`
	// RanksInterval contains interval of leaderboard recompute in seconds.
	RanksInterval int `json:"ranks_interval,omitempty"`
}

const (
	defaultMinParticipants    = 2
	defaultProblemsPerSession = 1
	defaultSessionDuration    = 15 * 60
	defaultRetryBudget        = 5
	defaultExpireInterval     = 5
	defaultRanksInterval      = 60
)

func (s Session) GetMinParticipants() int {
	if s.MinParticipants <= 0 {
		return defaultMinParticipants
	}
	return s.MinParticipants
}

func (s Session) GetProblemsPerSession() int {
	if s.ProblemsPerSession <= 0 {
		return defaultProblemsPerSession
	}
	return s.ProblemsPerSession
}

func (s Session) GetDuration() int64 {
	if s.Duration <= 0 {
		return defaultSessionDuration
	}
	return s.Duration
}

func (s Session) GetRetryBudget() int {
	if s.RetryBudget <= 0 {
		return defaultRetryBudget
	}
	return s.RetryBudget
}

func (s Session) GetExpireInterval() time.Duration {
	if s.ExpireInterval <= 0 {
		return defaultExpireInterval * time.Second
	}
	return time.Duration(s.ExpireInterval) * time.Second
}

func (s Session) GetRanksInterval() time.Duration {
	if s.RanksInterval <= 0 {
		return defaultRanksInterval * time.Second
	}
	return time.Duration(s.RanksInterval) * time.Second
}

// LoadFromFile loads configuration from json file.
func LoadFromFile(file string) (Config, error) {
	cfg := Config{
		LogLevel: LogLevel(log.INFO),
	}
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
