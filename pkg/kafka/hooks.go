package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. An error from BeforeHandle skips
// the handler and is treated as a handling failure.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
	// OnFailure runs once a message has exhausted its retries.
	OnFailure(ctx context.Context, topic string, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

func (NoopHook) OnFailure(context.Context, string, kafka.Message, error) {}

// HookFuncs implements ConsumerHook from optional functions.
type HookFuncs struct {
	Before  func(context.Context, string, kafka.Message) (context.Context, error)
	After   func(context.Context, string, kafka.Message, error)
	Failure func(context.Context, string, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, topic, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, err)
	}
}

func (h HookFuncs) OnFailure(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.Failure != nil {
		h.Failure(ctx, topic, km, err)
	}
}
