// Package ctxlog provides a context key for passing an hclog.Logger
// through context.Context.
package ctxlog

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the hclog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger hclog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the hclog.Logger from a context. If no logger is
// found, it returns a logger that discards everything.
func FromContext(ctx context.Context) hclog.Logger {
	if logger, ok := Lookup(ctx); ok {
		return logger
	}
	return hclog.NewNullLogger()
}

// Lookup returns the logger attached to ctx, if any.
func Lookup(ctx context.Context) (hclog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerKey).(hclog.Logger)
	return logger, ok && logger != nil
}
