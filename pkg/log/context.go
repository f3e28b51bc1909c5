package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return L()
}

// WithSession returns a context whose logger is tagged with the owner and id
// of a live connection. Handlers of that connection log through it.
func WithSession(ctx context.Context, userID, sessionID string) context.Context {
	l := Ctx(ctx).With().
		Str(FieldUserID, userID).
		Str(FieldSessionID, sessionID).
		Logger()
	return WithLogger(ctx, l)
}
