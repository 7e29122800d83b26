package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
	ErrConsumerClosed = errors.New(errors.ErrCodeInternal, "consumer closed")
)

// MentionHandler processes one observed mention. A returned error triggers
// retry; after maxRetries the message is parked on the dead-letter topic.
type MentionHandler func(ctx context.Context, dto restypes.MentionDTO) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
}

// Consumer drives the streaming resolution path: it reads observed
// mentions, hands each to the handler, and commits only after the handler
// or dead-lettering succeeded, so no mention is silently dropped.
type Consumer struct {
	reader     ReaderInterface
	deadLetter *Producer
	handler    MentionHandler
	logger     logging.Logger

	maxRetries   int
	retryBackoff time.Duration

	running atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	metrics *ConsumerMetrics
}

// NewConsumer builds a consumer group over the mention stream. deadLetter
// may be nil; failed messages are then dropped with an error log.
func NewConsumer(cfg config.KafkaConfig, handler MentionHandler, deadLetter *Producer, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "group id required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "handler required")
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Topic:             TopicMentionObserved,
		MinBytes:          1,
		MaxBytes:          10 * 1024 * 1024,
		MaxWait:           time.Second,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		StartOffset:       startOffset,
	})

	return &Consumer{
		reader:       reader,
		deadLetter:   deadLetter,
		handler:      handler,
		logger:       logger,
		maxRetries:   3,
		retryBackoff: 200 * time.Millisecond,
		metrics:      &ConsumerMetrics{},
	}, nil
}

// NewConsumerWithReader wraps an existing reader (for testing).
func NewConsumerWithReader(reader ReaderInterface, handler MentionHandler, deadLetter *Producer, logger logging.Logger) *Consumer {
	return &Consumer{
		reader:       reader,
		deadLetter:   deadLetter,
		handler:      handler,
		logger:       logger,
		maxRetries:   3,
		retryBackoff: time.Millisecond,
		metrics:      &ConsumerMetrics{},
	}
}

// Start launches the consume loop. It returns immediately; Stop shuts the
// loop down and waits for in-flight work.
func (c *Consumer) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(runCtx)
	}()

	c.logger.Info("mention consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			continue
		}
		c.metrics.MessagesConsumed.Add(1)

		c.processMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.Err(err))
		}
	}
}

// processMessage decodes and handles one message, retrying handler errors
// with backoff before dead-lettering.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	env, err := ParseEnvelope(msg)
	if err != nil {
		c.park(ctx, msg, "undecodable envelope: "+err.Error())
		return
	}

	var dto restypes.MentionDTO
	if err := env.DecodePayload(&dto); err != nil {
		c.park(ctx, msg, "undecodable mention payload: "+err.Error())
		return
	}

	for attempt := 0; ; attempt++ {
		err := c.handler(ctx, dto)
		if err == nil {
			c.metrics.MessagesProcessed.Add(1)
			return
		}

		// Rejections are terminal decisions, not transient failures: the
		// handler already logged them, so the message is done.
		if errors.IsCode(err, errors.ErrCodeMalformedMention) {
			c.metrics.MessagesProcessed.Add(1)
			return
		}

		if attempt >= c.maxRetries {
			c.metrics.MessagesFailed.Add(1)
			c.park(ctx, msg, "handler failed after retries: "+err.Error())
			return
		}

		c.metrics.MessagesRetried.Add(1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryBackoff << uint(attempt)):
		}
	}
}

func (c *Consumer) park(ctx context.Context, msg kafka.Message, reason string) {
	if c.deadLetter == nil {
		c.logger.Error("dropping unprocessable mention", logging.String("reason", reason))
		return
	}
	if err := c.deadLetter.PublishDeadLetter(ctx, msg, reason); err != nil {
		c.logger.Error("dead-letter publish failed",
			logging.String("reason", reason), logging.Err(err))
		return
	}
	c.metrics.MessagesDeadLettered.Add(1)
}

// MetricsSnapshot is a point-in-time copy of the consumer counters.
type MetricsSnapshot struct {
	Consumed     int64
	Processed    int64
	Failed       int64
	Retried      int64
	DeadLettered int64
}

// Metrics returns a snapshot of the consumer counters.
func (c *Consumer) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Consumed:     c.metrics.MessagesConsumed.Load(),
		Processed:    c.metrics.MessagesProcessed.Load(),
		Failed:       c.metrics.MessagesFailed.Load(),
		Retried:      c.metrics.MessagesRetried.Load(),
		DeadLettered: c.metrics.MessagesDeadLettered.Load(),
	}
}

// Stop shuts the consumer down and waits for the loop to exit. Safe to
// call more than once.
func (c *Consumer) Stop() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("mention consumer stopped",
		logging.Int64("processed", c.metrics.MessagesProcessed.Load()))
	return err
}
