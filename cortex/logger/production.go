package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ProductionConfig mirrors cortex/config's LoggingConfig without importing
// it, so this package stays a leaf dependency.
type ProductionConfig struct {
	Level     string // debug|info|warn|error
	Format    string // json|text
	Output    string // stdout|stderr
	Component string
}

// Production is a JSON-or-text line logger. It has no external
// dependencies beyond the standard library, grounded on the teacher
// framework's ProductionLogger (core/config.go) which takes the same
// approach: no logging library, just io.Writer + encoding/json.
type Production struct {
	level     string
	debug     bool
	format    string
	component string
	out       io.Writer
}

// NewProduction builds a Production logger from a ProductionConfig.
func NewProduction(cfg ProductionConfig) *Production {
	out := io.Writer(os.Stdout)
	if cfg.Output == "stderr" {
		out = os.Stderr
	}
	level := strings.ToLower(cfg.Level)
	if level == "" {
		level = "info"
	}
	format := cfg.Format
	if format == "" {
		format = "json"
	}
	return &Production{
		level:     level,
		debug:     level == "debug",
		format:    format,
		component: cfg.Component,
		out:       out,
	}
}

func (p *Production) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

func (p *Production) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.write("DEBUG", msg, fields, nil)
	}
}
func (p *Production) Info(msg string, fields map[string]interface{})  { p.write("INFO", msg, fields, nil) }
func (p *Production) Warn(msg string, fields map[string]interface{})  { p.write("WARN", msg, fields, nil) }
func (p *Production) Error(msg string, fields map[string]interface{}) { p.write("ERROR", msg, fields, nil) }

func (p *Production) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.write("DEBUG", msg, fields, ctx)
	}
}
func (p *Production) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("INFO", msg, fields, ctx)
}
func (p *Production) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("WARN", msg, fields, ctx)
}
func (p *Production) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("ERROR", msg, fields, ctx)
}

func (p *Production) write(level, msg string, fields map[string]interface{}, ctx context.Context) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)

	if p.format != "text" {
		entry := map[string]interface{}{
			"ts":        ts,
			"level":     level,
			"component": p.component,
			"message":   msg,
		}
		if reqID, ok := requestIDFromContext(ctx); ok {
			entry["request_id"] = reqID
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.out, string(data))
		}
		return
	}

	var b strings.Builder
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintf(p.out, "%s [%s] [%s] %s%s\n", ts, level, p.component, msg, b.String())
}

type requestIDKey struct{}

// WithRequestID returns a context carrying a request/session id that
// Production and Zap surface as a structured field on every log line.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok && v != ""
}
