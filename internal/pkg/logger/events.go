package logger

import (
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// EventLogger forwards agent events to a logger at debug level; stage
// failures go out as warnings.
type EventLogger struct {
	Log   ports.Logger
	RunID string
}

// Emit implements ports.EventSink.
func (e EventLogger) Emit(event domain.AgentEvent) {
	if e.Log == nil {
		return
	}
	fields := make(map[string]interface{}, len(event.Fields)+3)
	for k, v := range event.Fields {
		fields[k] = v
	}
	fields["kind"] = string(event.Kind)
	if event.Stage != "" {
		fields["stage"] = string(event.Stage)
	}
	if e.RunID != "" {
		fields["run"] = e.RunID
	}
	msg := event.Message
	if msg == "" {
		msg = string(event.Kind)
	}
	if event.Kind == domain.EventStageFailed {
		e.Log.Warn(msg, fields)
		return
	}
	e.Log.Debug(msg, fields)
}

// Sinks fans an event out to several sinks, skipping nil entries.
type Sinks []ports.EventSink

// Emit implements ports.EventSink.
func (s Sinks) Emit(event domain.AgentEvent) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(event)
		}
	}
}

var (
	_ ports.EventSink = EventLogger{}
	_ ports.EventSink = Sinks(nil)
)
