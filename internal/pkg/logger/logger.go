package logger

import (
	"log"
	"os"

	"github.com/doeshing/li/internal/ports"
)

// StdLogger writes to stderr through the log package when verbose is on.
type StdLogger struct {
	verbose bool
	out     *log.Logger
}

// NewStd creates a StdLogger.
func NewStd(verbose bool) *StdLogger {
	return &StdLogger{verbose: verbose, out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *StdLogger) Debug(msg string, fields map[string]interface{}) {
	l.print("[DEBUG]", msg, nil, fields)
}

func (l *StdLogger) Info(msg string, fields map[string]interface{}) {
	l.print("[INFO]", msg, nil, fields)
}

func (l *StdLogger) Warn(msg string, fields map[string]interface{}) {
	l.print("[WARN]", msg, nil, fields)
}

func (l *StdLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.print("[ERROR]", msg, err, fields)
}

func (l *StdLogger) print(level, msg string, err error, fields map[string]interface{}) {
	if !l.verbose {
		return
	}
	if err != nil {
		l.out.Println(level, msg, err, fields)
		return
	}
	l.out.Println(level, msg, fields)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, map[string]interface{})        {}
func (Nop) Info(string, map[string]interface{})         {}
func (Nop) Warn(string, map[string]interface{})         {}
func (Nop) Error(string, error, map[string]interface{}) {}

// Multi fans each entry out to several loggers.
type Multi []ports.Logger

func (m Multi) Debug(msg string, fields map[string]interface{}) {
	for _, l := range m {
		l.Debug(msg, fields)
	}
}

func (m Multi) Info(msg string, fields map[string]interface{}) {
	for _, l := range m {
		l.Info(msg, fields)
	}
}

func (m Multi) Warn(msg string, fields map[string]interface{}) {
	for _, l := range m {
		l.Warn(msg, fields)
	}
}

func (m Multi) Error(msg string, err error, fields map[string]interface{}) {
	for _, l := range m {
		l.Error(msg, err, fields)
	}
}

var (
	_ ports.Logger = (*StdLogger)(nil)
	_ ports.Logger = Nop{}
	_ ports.Logger = Multi(nil)
)
