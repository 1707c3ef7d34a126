package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks a job failure that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

// ErrNotRunning is returned by Enqueue before Start or after Stop.
var ErrNotRunning = errors.New("queue not running")

// Enqueuer publishes jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// Config contains the configuration for the queue.
type Config struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before a message goes to the dead letter list
	RetryDelay time.Duration // delay before a failed message is retried
	RetryPoll  time.Duration // how often due retries are moved back
	JobTimeout time.Duration // zero means no limit
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Decode unmarshals a payload into T. Decode failures wrap ErrPermanent.
func Decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
	}
	return v, nil
}
