// Package audit emits best-effort structured security events. Emission is
// write-only and must never fail into, block, or slow down the request
// path; a sink that cannot keep up drops events.
package audit

import (
	"time"

	"go.uber.org/zap"
)

// Event is one recorded gate observation.
type Event struct {
	Tag       string
	Timestamp time.Time
	Fields    map[string]any
}

// Sink receives audit events. Implementations must not panic and must not
// propagate failures to callers.
type Sink interface {
	Record(tag string, fields map[string]any)
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Record(string, map[string]any) {}

// ZapSink writes each event as a structured log line.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

func (s *ZapSink) Record(tag string, fields map[string]any) {
	if s == nil || s.log == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	s.log.Info(tag, zf...)
}

// ChannelSink buffers events for consumption by tests.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Record(tag string, fields map[string]any) {
	ev := Event{Tag: tag, Timestamp: time.Now(), Fields: fields}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
