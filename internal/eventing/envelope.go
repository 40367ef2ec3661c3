package eventing

import (
	"context"
	"time"
)

// Envelope carries delivery metadata for one published event.
type Envelope struct {
	EventID    string
	EventType  string
	OccurredAt time.Time
}

type contextKey string

const contextKeyEnvelope contextKey = "eventing.envelope"

// WithEnvelope stores the envelope in context.
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, contextKeyEnvelope, env)
}

// EnvelopeFromContext extracts the envelope from context.
func EnvelopeFromContext(ctx context.Context) (Envelope, bool) {
	if ctx == nil {
		return Envelope{}, false
	}
	env, ok := ctx.Value(contextKeyEnvelope).(Envelope)
	return env, ok
}
