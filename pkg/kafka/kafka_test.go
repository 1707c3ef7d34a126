package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	applogger "StoreSales/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }

func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestProducerEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "events", []byte("k"), map[string]int{"a": 1}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))
	require.NoError(t, p.PublishBatch(context.Background(), "events", nil))

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "events", msgs[0].Topic)
	assert.Equal(t, []byte("k"), msgs[0].Key)
	assert.JSONEq(t, `{"a":1}`, string(msgs[0].Value))
	assert.Equal(t, "plain", string(msgs[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducerWrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, "snappy")
	err := p.Publish(context.Background(), "events", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	err = p.Publish(context.Background(), "events", nil, func() {})
	assert.Error(t, err, "unencodable value")
}

func testConsumer(cfg *ConsumerConfig, reader *fakeReader, dlq messageWriter) *Consumer {
	return newConsumer(cfg, applogger.Nop(), func(string) messageReader { return reader }, dlq)
}

func fastRetry() *ConsumerConfig {
	cfg := defaultConsumerConfig()
	cfg.WorkerCount = 2
	cfg.RetryMax = 2
	cfg.BackoffMin = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	cfg.DLQTopic = "sales.daily.dlq"
	return cfg
}

func TestConsumerHandlesAndCommits(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Topic: "sales", Offset: 1, Value: []byte(`1`)},
		kafka.Message{Topic: "sales", Offset: 2, Value: []byte(`2`)},
	)
	var mu sync.Mutex
	var seen []string
	c := testConsumer(fastRetry(), reader, &fakeWriter{})
	c.RegisterHandler(funcHandler{topic: "sales", fn: func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(b))
		return nil
	}})

	require.NoError(t, c.Start())
	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"1", "2"}, seen)
}

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "sales", Offset: 7, Key: []byte("k"), Value: []byte(`bad`)})
	dlq := &fakeWriter{}
	var calls int
	var mu sync.Mutex
	var failed error

	c := testConsumer(fastRetry(), reader, dlq)
	c.WithConsumerHook(HookFuncs{Failure: func(_ context.Context, _ string, _ kafka.Message, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = err
	}})
	c.RegisterHandler(funcHandler{topic: "sales", fn: func([]byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return fmt.Errorf("attempt %d", calls)
	}})

	require.NoError(t, c.Start())
	assert.Eventually(t, func() bool { return len(dlq.written()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls, "first attempt plus two retries")
	assert.EqualError(t, failed, "attempt 3")

	msg := dlq.written()[0]
	assert.Equal(t, "sales.daily.dlq", msg.Topic)
	assert.Equal(t, []byte("bad"), msg.Value)
	assert.Equal(t, "source_topic", msg.Headers[0].Key)
	assert.Equal(t, "sales", string(msg.Headers[0].Value))
}

func TestConsumerPermanentErrorSkipsRetry(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "sales", Offset: 1, Value: []byte(`{`)})
	dlq := &fakeWriter{}
	var mu sync.Mutex
	calls := 0
	c := testConsumer(fastRetry(), reader, dlq)
	c.RegisterHandler(funcHandler{topic: "sales", fn: func(b []byte) error {
		mu.Lock()
		calls++
		mu.Unlock()
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return nil
	}})

	require.NoError(t, c.Start())
	assert.Eventually(t, func() bool { return len(dlq.written()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestConsumerRecoversHandlerPanic(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "sales", Offset: 3})
	dlq := &fakeWriter{}
	cfg := fastRetry()
	cfg.RetryMax = 0
	c := testConsumer(cfg, reader, dlq)
	c.RegisterHandler(funcHandler{topic: "sales", fn: func([]byte) error { panic("boom") }})

	require.NoError(t, c.Start())
	assert.Eventually(t, func() bool { return len(dlq.written()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
}

func TestConsumerStartWithoutHandlers(t *testing.T) {
	c := testConsumer(fastRetry(), newFakeReader(), nil)
	assert.Error(t, c.Start())
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}
