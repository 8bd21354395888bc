package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Logf(format string, v ...any)
}

type subsystemLogger struct {
	name   string
	logger *ServerLogger
}

func (s *subsystemLogger) Logf(format string, v ...any) {
	s.logger.Logf(s.name, format, v...)
}

// ServerLogger hands out one Logger per subsystem. Every line carries the
// subsystem name as a field.
type ServerLogger struct {
	base zerolog.Logger

	lock       sync.RWMutex
	subsystems map[string]zerolog.Logger
	enabled    bool
}

// NewServerLogger writes to out (stderr when nil). level is a zerolog level
// name ("debug", "info", ...); an unknown name falls back to info.
func NewServerLogger(out io.Writer, logging bool, level string) *ServerLogger {
	if out == nil {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &ServerLogger{
		base:       zerolog.New(out).Level(lvl).With().Timestamp().Logger(),
		subsystems: make(map[string]zerolog.Logger),
		enabled:    logging,
	}
}

func (n *ServerLogger) RegisterSubsystem(name string) (Logger, error) {
	if name == "" {
		return nil, fmt.Errorf("The subsystem needs a name")
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	n.subsystems[name] = n.base.With().Str("subsystem", name).Logger()
	return &subsystemLogger{name, n}, nil
}

func (n *ServerLogger) GetSubsystemLogger(name string) (Logger, error) {
	n.lock.RLock()
	defer n.lock.RUnlock()

	if _, ok := n.subsystems[name]; !ok {
		return nil, fmt.Errorf("The subsystem was not registered")
	}
	return &subsystemLogger{name, n}, nil
}

// MustSubsystem is RegisterSubsystem for names known at compile time.
func (n *ServerLogger) MustSubsystem(name string) Logger {
	l, err := n.RegisterSubsystem(name)
	if err != nil {
		panic(err)
	}
	return l
}

func (n *ServerLogger) EnableLogging() {
	n.lock.Lock()
	n.enabled = true
	n.lock.Unlock()
}

func (n *ServerLogger) DisableLogging() {
	n.lock.Lock()
	n.enabled = false
	n.lock.Unlock()
}

func (n *ServerLogger) Logf(name, format string, v ...any) {
	n.lock.RLock()
	logger, ok := n.subsystems[name]
	enabled := n.enabled
	n.lock.RUnlock()

	if !enabled {
		return
	}
	if !ok {
		logger = n.base.With().Str("subsystem", name).Logger()
	}
	logger.Info().Msgf(format, v...)
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}

// Nop discards everything. Used by tests and by components built without a logger.
func Nop() Logger { return nopLogger{} }
