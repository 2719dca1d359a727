// Package logger provides the structured logging interface used by every
// cortex component. Components accept a Logger via constructor injection and
// default to NoOp when none is supplied, the same pattern the teacher
// framework uses for its core.Logger.
package logger

import "context"

// Logger is the minimal structured-logging contract every cortex component
// depends on. It never returns an error: logging must never be a reason a
// turn fails.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	DebugContext(ctx context.Context, msg string, fields map[string]interface{})
	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAware lets a Logger be scoped to a component name, so logs from
// cortex/weights and cortex/audit can be filtered independently even though
// they share one underlying sink.
//
//	auditLog := base.WithComponent("cortex/audit")
type ComponentAware interface {
	Logger
	WithComponent(component string) Logger
}

// NoOp discards everything. It is the default for any component constructed
// without an explicit Logger.
type NoOp struct{}

func (NoOp) Debug(string, map[string]interface{}) {}
func (NoOp) Info(string, map[string]interface{})  {}
func (NoOp) Warn(string, map[string]interface{})  {}
func (NoOp) Error(string, map[string]interface{}) {}

func (NoOp) DebugContext(context.Context, string, map[string]interface{}) {}
func (NoOp) InfoContext(context.Context, string, map[string]interface{})  {}
func (NoOp) WarnContext(context.Context, string, map[string]interface{})  {}
func (NoOp) ErrorContext(context.Context, string, map[string]interface{}) {}
