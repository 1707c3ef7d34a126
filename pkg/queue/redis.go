package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"StoreSales/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const popTimeout = time.Second

// Stats reports list sizes.
type Stats struct {
	Pending int64 `json:"pending"`
	Retry   int64 `json:"retry"`
	Dead    int64 `json:"dead"`
}

// RedisQueue is a Redis list backed job queue. Failed messages wait in a
// sorted set scored by their retry time and end in a dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    Config
	client    *redis.Client
	keyPrefix string
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	now       func() time.Time
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a queue over client. Call Start to run workers.
func NewRedisQueue(lgr *logger.Logger, cfg Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.RetryPoll <= 0 {
		cfg.RetryPoll = 5 * time.Second
	}

	rq := &RedisQueue{
		logger:    lgr,
		config:    cfg,
		client:    client,
		keyPrefix: "storesales:queue",
		jobs:      make(map[string]Job),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers a job. Registering a type twice keeps the first.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("type", job.Type()))
}

// Start pings Redis and starts the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	r.cancel = stop
	r.isRunning = true

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, i)
	}
	r.wg.Add(1)
	go r.retryProcessor(runCtx)

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for running jobs until ctx is done.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Close closes the Redis client. Call Stop first.
func (r *RedisQueue) Close() error {
	return r.client.Close()
}

// Enqueue pushes a message for a registered type and returns its id.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	r.mu.RLock()
	running := r.isRunning
	_, registered := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return "", ErrNotRunning
	}
	if !registered {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: r.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

// Stats returns the pending, retry and dead letter sizes.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.queueKey())
	retry := pipe.ZCard(ctx, r.retryKey())
	dead := pipe.LLen(ctx, r.deadLetterKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retry: retry.Val(), Dead: dead.Val()}, nil
}

// DeadLetters returns up to n dead messages, newest first.
func (r *RedisQueue) DeadLetters(ctx context.Context, n int64) ([]Message, error) {
	raw, err := r.client.LRange(ctx, r.deadLetterKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dlq: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, s := range raw {
		var m Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for ctx.Err() == nil {
		r.processNextMessage(ctx)
	}
	r.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
}

func (r *RedisQueue) processNextMessage(ctx context.Context) {
	result, err := r.client.BRPop(ctx, popTimeout, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	r.processMessage(ctx, msg)
}

func (r *RedisQueue) processMessage(ctx context.Context, msg Message) {
	r.mu.RLock()
	job, exists := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !exists {
		r.logger.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		msg.LastError = "no job registered"
		r.moveToDeadLetterQueue(msg)
		return
	}

	jobCtx := ctx
	if r.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, r.config.JobTimeout)
		defer cancel()
	}

	start := r.now()
	err := job.Handle(jobCtx, msg.Payload)
	elapsed := r.now().Sub(start)
	if err == nil {
		r.logger.Info("job done",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int64("elapsed_ms", elapsed.Milliseconds()))
		return
	}
	if ctx.Err() != nil {
		// shutting down: put it back for the next worker to pick up
		r.logger.Warn("job interrupted",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type))
		r.requeue(msg)
		return
	}
	r.handleProcessingError(msg, err)
}

func (r *RedisQueue) handleProcessingError(msg Message, err error) {
	msg.LastError = err.Error()
	r.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if errors.Is(err, ErrPermanent) || msg.Attempts >= r.config.RetryLimit {
		r.moveToDeadLetterQueue(msg)
		return
	}
	msg.Attempts++
	r.scheduleRetry(msg, r.now().Add(r.config.RetryDelay))
}

func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) requeue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := r.client.RPush(context.Background(), r.queueKey(), data).Err(); err != nil {
		r.logger.Error("requeue", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) moveToDeadLetterQueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), data).Err(); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
		return
	}
	r.logger.Warn("job moved to dead letters",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempts", msg.Attempts))
}

func (r *RedisQueue) retryProcessor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.RetryPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.processRetryMessages(ctx)
		}
	}
}

// processRetryMessages moves due retries back to the main list. ZREM decides
// which instance moves a member when several poll the same set.
func (r *RedisQueue) processRetryMessages(ctx context.Context) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		if ctx.Err() != nil {
			return
		}
		removed, err := r.client.ZRem(ctx, r.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), member).Err(); err != nil {
			r.logger.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string {
	return r.keyPrefix + ":messages"
}

func (r *RedisQueue) retryKey() string {
	return r.keyPrefix + ":retry"
}

func (r *RedisQueue) deadLetterKey() string {
	return r.keyPrefix + ":dlq"
}
