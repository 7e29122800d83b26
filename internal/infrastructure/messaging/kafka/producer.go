package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	domres "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")

// sourceService identifies this service in envelope headers.
const sourceService = "resolution-engine"

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// ProducerMetrics holds producer counters.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// Producer publishes resolution review artifacts: per-mention decisions,
// mismatch reports, and rejection records. It satisfies the batch service's
// Publisher contract.
type Producer struct {
	writer  WriterInterface
	logger  logging.Logger
	closed  atomic.Bool
	metrics *ProducerMetrics
}

var _ appres.Publisher = (*Producer)(nil)

// NewProducer builds a producer on the configured brokers. Messages are
// hashed by key so per-mention event order is preserved.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}

	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries + 1,
		BatchTimeout: batchTimeout,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}

	return &Producer{writer: writer, logger: logger, metrics: &ProducerMetrics{}}, nil
}

// NewProducerWithWriter wraps an existing writer (for testing).
func NewProducerWithWriter(writer WriterInterface, logger logging.Logger) *Producer {
	return &Producer{writer: writer, logger: logger, metrics: &ProducerMetrics{}}
}

// PublishRejection forwards one rejection-log record.
func (p *Producer) PublishRejection(ctx context.Context, rec restypes.RejectionRecord) error {
	key := string(rec.MentionID)
	if key == "" {
		key = rec.RawName
	}
	return p.publish(ctx, TopicResolutionRejected, key, rec)
}

// PublishMismatch forwards one filed mismatch report.
func (p *Producer) PublishMismatch(ctx context.Context, report restypes.MismatchReportDTO) error {
	return p.publish(ctx, TopicResolutionMismatch, string(report.ReportID), report)
}

// PublishDecision forwards one per-mention resolution outcome.
func (p *Producer) PublishDecision(ctx context.Context, d domres.Decision) error {
	payload := DecisionPayload{
		MentionID: string(d.MentionID),
		EntityID:  string(d.EntityID),
		State:     string(d.State),
		Score:     d.Score,
		Created:   d.Created,
		DecidedAt: time.Now().UTC(),
	}
	return p.publish(ctx, TopicResolutionDecided, payload.MentionID, payload)
}

// PublishDeadLetter parks an unprocessable mention message.
func (p *Producer) PublishDeadLetter(ctx context.Context, original kafka.Message, reason string) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	msg := kafka.Message{
		Topic: TopicDeadLetterMention,
		Key:   original.Key,
		Value: original.Value,
		Headers: append(original.Headers,
			kafka.Header{Key: "dead_letter_reason", Value: []byte(reason)},
			kafka.Header{Key: "original_topic", Value: []byte(original.Topic)},
		),
		Time: time.Now().UTC(),
	}
	return p.write(ctx, msg)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	env, err := NewEventEnvelope(topic, sourceService, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

func (p *Producer) write(ctx context.Context, msg kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.CodeMessageQueueError, "publish failed")
	}
	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(msg.Value)))
	p.logger.Debug("message published", logging.String("topic", msg.Topic))
	return nil
}

// Metrics returns a snapshot of the producer counters.
func (p *Producer) Metrics() (sent, failed, bytes int64) {
	return p.metrics.MessagesSent.Load(), p.metrics.MessagesFailed.Load(), p.metrics.BytesSent.Load()
}

// Close flushes and closes the writer. Safe to call more than once.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed",
		logging.Int64("sent", p.metrics.MessagesSent.Load()))
	return err
}
