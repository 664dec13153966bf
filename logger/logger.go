// Package logger builds the *zap.Logger handed to a deployed service.
//
// Every entry the service logs is converted into a Record tagged with the
// deployment ID and handed to a Sink owned by the host. The service never
// writes to the host's outputs directly.
package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Record is one log entry emitted by a deployment.
type Record struct {
	DeploymentID string
	Time         time.Time
	Level        zapcore.Level
	Logger       string
	Message      string
	Fields       map[string]any
}

// Sink receives the records of a deployment. Write must not block for long;
// it is called on the logging goroutine.
type Sink interface {
	Write(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

// Write calls fn.
func (fn SinkFunc) Write(r Record) {
	fn(r)
}

// New returns a logger whose entries at or above level are delivered to sink.
//
// Fatal and Panic entries are delivered and then end only the calling
// goroutine; the process belongs to the host.
func New(deploymentID string, sink Sink, level zapcore.LevelEnabler) *zap.Logger {
	return zap.New(NewCore(deploymentID, sink, level),
		zap.WithFatalHook(zapcore.WriteThenGoexit),
		zap.WithPanicHook(zapcore.WriteThenGoexit),
	)
}

// NewCore returns the zapcore.Core behind New.
func NewCore(deploymentID string, sink Sink, level zapcore.LevelEnabler) zapcore.Core {
	return &core{
		LevelEnabler: level,
		deploymentID: deploymentID,
		sink:         sink,
	}
}

type core struct {
	zapcore.LevelEnabler
	deploymentID string
	sink         Sink
	context      []zapcore.Field
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.context = make([]zapcore.Field, 0, len(c.context)+len(fields))
	clone.context = append(clone.context, c.context...)
	clone.context = append(clone.context, fields...)
	return &clone
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.context {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	c.sink.Write(Record{
		DeploymentID: c.deploymentID,
		Time:         ent.Time,
		Level:        ent.Level,
		Logger:       ent.LoggerName,
		Message:      ent.Message,
		Fields:       enc.Fields,
	})
	return nil
}

func (c *core) Sync() error {
	if s, ok := c.sink.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
