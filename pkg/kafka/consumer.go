package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "StoreSales/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type partKey struct {
	topic     string
	partition int
}

// Consumer fans messages from one reader per topic out to a worker pool.
// Messages of one partition are handled one at a time. Failed messages are
// retried with jittered backoff and then sent to the DLQ when configured.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *applogger.Logger
	newReader func(topic string) messageReader
	readers   map[string]messageReader
	handlers  map[string]MessageHandler
	dlq       messageWriter
	hook      ConsumerHook

	msgChan   chan kafka.Message
	ctx       context.Context
	cancel    context.CancelFunc
	fetchWG   sync.WaitGroup
	workWG    sync.WaitGroup
	stopOnce  sync.Once
	partMu    sync.Mutex
	partLocks map[partKey]*sync.Mutex
}

// NewConsumer creates a new Kafka consumer group member.
func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	var dlq messageWriter
	if cfg.DLQTopic != "" {
		dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}, AllowAutoTopicCreation: true}
	}
	newReader := func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	return newConsumer(cfg, l, newReader, dlq), nil
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
}

func newConsumer(cfg *ConsumerConfig, l *applogger.Logger, newReader func(string) messageReader, dlq messageWriter) *Consumer {
	initConsumerMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:       cfg,
		log:       l,
		newReader: newReader,
		readers:   make(map[string]messageReader),
		handlers:  make(map[string]MessageHandler),
		dlq:       dlq,
		hook:      NoopHook{},
		msgChan:   make(chan kafka.Message, cfg.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
		partLocks: make(map[partKey]*sync.Mutex),
	}
}

// RegisterHandler registers a message handler for its topic. Call before
// Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches the readers and the worker pool and returns immediately.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.worker()
	}
	for topic, reader := range c.readers {
		c.fetchWG.Add(1)
		go c.fetch(topic, reader)
	}
	c.log.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.Int("topics", len(c.readers)),
	)
	return nil
}

// Stop stops fetching, drains queued messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()
		done := make(chan struct{})
		go func() {
			c.fetchWG.Wait()
			close(c.msgChan)
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close failed", applogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) fetch(topic string, reader messageReader) {
	defer c.fetchWG.Done()
	for {
		msg, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-c.ctx.Done():
				return
			}
		}
		select {
		case c.msgChan <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workWG.Done()
	for msg := range c.msgChan {
		c.process(msg)
	}
}

func (c *Consumer) process(km kafka.Message) {
	handler, ok := c.handlers[km.Topic]
	if !ok {
		return
	}
	start := time.Now()

	pl := c.partitionLock(km.Topic, km.Partition)
	pl.Lock()
	defer pl.Unlock()

	err := c.handleWithRetry(handler, km)
	result := "ok"
	committable := err == nil
	if err != nil {
		result = "failed"
		c.hook.OnFailure(context.Background(), km.Topic, km, err)
		c.log.Error("kafka message failed",
			applogger.String("topic", km.Topic),
			applogger.Int("partition", km.Partition),
			applogger.Int64("offset", km.Offset),
			applogger.Error(err),
		)
		if c.dlq != nil && c.cfg.DLQTopic != "" {
			dlqErr := c.dlq.WriteMessages(context.Background(), kafka.Message{
				Topic: c.cfg.DLQTopic,
				Key:   km.Key,
				Value: km.Value,
				Time:  time.Now().UTC(),
				Headers: []kafka.Header{
					{Key: "source_topic", Value: []byte(km.Topic)},
					{Key: "error", Value: []byte(err.Error())},
				},
			})
			if dlqErr != nil {
				c.log.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(dlqErr))
			} else {
				result = "dlq"
				committable = true
			}
		}
	}

	if committable {
		if reader := c.readers[km.Topic]; reader != nil {
			_ = c.commitWithRetry(reader, km, 3)
		}
	}
	consumerMessagesTotal.WithLabelValues(km.Topic, result).Inc()
	consumerHandleLatency.WithLabelValues(km.Topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(handler MessageHandler, km kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	for attempt := 1; ; attempt++ {
		hctx, berr := c.hook.BeforeHandle(context.Background(), km.Topic, km)
		if berr != nil {
			return berr
		}
		err = handler.Handle(hctx, km.Value)
		c.hook.AfterHandle(hctx, km.Topic, km, err)
		if err == nil || attempt > c.cfg.RetryMax || errors.Is(err, ErrPermanent) {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.ctx.Done():
			return err
		}
	}
}

// ErrPermanent marks handler errors that retrying cannot fix, such as a
// malformed payload.
var ErrPermanent = errors.New("permanent failure")

func (c *Consumer) commitWithRetry(reader messageReader, km kafka.Message, max int) error {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed", applogger.String("topic", km.Topic), applogger.Int("attempts", max), applogger.Error(err))
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	k := partKey{topic, partition}
	l, ok := c.partLocks[k]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[k] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	// up to 50% jitter
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerMessagesTotal *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "storesales_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		)
		consumerMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "storesales_kafka_consumer_messages_total", Help: "Handled messages by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "storesales_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
