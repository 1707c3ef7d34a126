package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type.
type Job interface {
	// Type is the message type the job consumes.
	Type() string

	// Handle processes one payload. A returned error schedules a retry
	// unless it wraps ErrPermanent.
	Handle(ctx context.Context, payload json.RawMessage) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	Name string
	Fn   func(ctx context.Context, payload json.RawMessage) error
}

func (j JobFunc) Type() string { return j.Name }

func (j JobFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return j.Fn(ctx, payload)
}
