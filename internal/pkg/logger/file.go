package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// Entry is one structured line in the log file.
type Entry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"msg"`
	Error     string                 `json:"error,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// FileLogger writes every level to a writer, usually a rotating file.
type FileLogger struct {
	mu        sync.Mutex
	w         io.Writer
	component string
	jsonMode  bool
	now       func() time.Time
}

// NewFile opens a size-rotated log file described by the settings.
func NewFile(settings domain.LoggingSettings, component string) (*FileLogger, error) {
	if settings.File == "" {
		return nil, fmt.Errorf("logging.file is empty")
	}
	if err := os.MkdirAll(filepath.Dir(settings.File), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   settings.File,
		MaxSize:    orDefault(settings.MaxSizeMB, domain.DefaultLogMaxSizeMB),
		MaxBackups: orDefault(settings.MaxBackups, domain.DefaultLogMaxBackups),
		MaxAge:     orDefault(settings.MaxAgeDays, domain.DefaultLogMaxAgeDays),
	}
	return NewWriter(rotator, component, settings.JSON), nil
}

// NewWriter builds a FileLogger over any writer.
func NewWriter(w io.Writer, component string, jsonMode bool) *FileLogger {
	return &FileLogger{w: w, component: component, jsonMode: jsonMode, now: time.Now}
}

// WithComponent returns a logger sharing the writer with a new component tag.
func (f *FileLogger) WithComponent(component string) *FileLogger {
	return &FileLogger{w: f.w, component: component, jsonMode: f.jsonMode, now: f.now}
}

func (f *FileLogger) Debug(msg string, fields map[string]interface{}) {
	f.write("debug", msg, nil, fields)
}

func (f *FileLogger) Info(msg string, fields map[string]interface{}) {
	f.write("info", msg, nil, fields)
}

func (f *FileLogger) Warn(msg string, fields map[string]interface{}) {
	f.write("warn", msg, nil, fields)
}

func (f *FileLogger) Error(msg string, err error, fields map[string]interface{}) {
	f.write("error", msg, err, fields)
}

// Close releases the underlying file when it has one.
func (f *FileLogger) Close() error {
	if c, ok := f.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (f *FileLogger) write(level, msg string, err error, fields map[string]interface{}) {
	entry := Entry{
		Timestamp: f.now().Format(time.RFC3339),
		Level:     level,
		Component: f.component,
		Message:   msg,
		Fields:    fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	var line string
	if f.jsonMode {
		data, mErr := json.Marshal(entry)
		if mErr != nil {
			return
		}
		line = string(data)
	} else {
		line = formatText(entry)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.WriteString(f.w, line+"\n")
}

func formatText(e Entry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp)
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(e.Level))
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
		}
	}
	return b.String()
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

var _ ports.Logger = (*FileLogger)(nil)
