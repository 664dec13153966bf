package logger

import (
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ChannelSink buffers records on a channel for a host-side consumer.
// When the buffer is full the record is dropped and counted.
type ChannelSink struct {
	ch      chan Record
	dropped atomic.Uint64
}

// NewChannelSink creates a ChannelSink buffering up to size records.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Record, size)}
}

// Write enqueues r without blocking.
func (s *ChannelSink) Write(r Record) {
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// Records returns the channel records are delivered on.
func (s *ChannelSink) Records() <-chan Record {
	return s.ch
}

// Dropped reports how many records were discarded because the buffer was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// ZapSink forwards records to a host logger, tagged with deployment_id.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a ZapSink writing to logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Write logs r on the host logger. Fatal and panic entries are written at
// error level; they must never terminate the host.
func (s *ZapSink) Write(r Record) {
	level := r.Level
	if level > zapcore.ErrorLevel {
		level = zapcore.ErrorLevel
	}

	l := s.logger
	if r.Logger != "" {
		l = l.Named(r.Logger)
	}
	ce := l.Check(level, r.Message)
	if ce == nil {
		return
	}
	if !r.Time.IsZero() {
		ce.Time = r.Time
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("deployment_id", r.DeploymentID))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, r.Fields[k]))
	}
	ce.Write(fields...)
}

// Sync flushes the host logger.
func (s *ZapSink) Sync() error {
	return s.logger.Sync()
}
