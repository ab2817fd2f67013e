package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// Publisher is the event-producing port. The gateway handlers and both
// workers depend on this interface rather than the concrete client so tests
// can capture published events.
type Publisher interface {
	// Publish sends one event to a topic and waits for broker acknowledgment.
	Publish(ctx context.Context, topic string, event model.JobEvent) error
	// Ping verifies broker reachability without producing.
	Ping(ctx context.Context) error
	// Close flushes pending records and releases the client.
	Close()
}

// Producer publishes JSON job events with acks from all in-sync replicas.
type Producer struct {
	client       *kgo.Client
	logger       *slog.Logger
	sendTimeout  time.Duration
	flushTimeout time.Duration
}

var _ Publisher = (*Producer)(nil)

// NewProducer connects a producer, retrying per the bounded connect policy.
func NewProducer(cfg config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "kafka_producer")

	backoff := cfg.RetryBackoff
	client, err := connect(cfg, logger, []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers()...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RequestRetries(cfg.ProducerRetries),
		kgo.RetryBackoffFn(func(int) time.Duration { return backoff }),
		kgo.ProduceRequestTimeout(cfg.RequestTimeout),
	})
	if err != nil {
		return nil, err
	}

	return &Producer{
		client:       client,
		logger:       logger,
		sendTimeout:  cfg.RequestTimeout,
		flushTimeout: cfg.FlushTimeout,
	}, nil
}

// Publish marshals the event and produces it synchronously so the caller
// observes delivery failure. The job ID keys the record.
func (p *Producer) Publish(ctx context.Context, topic string, event model.JobEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "marshal %s event", event.EventType)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.JobID),
		Value: value,
	}
	if err := p.client.ProduceSync(sendCtx, record).FirstErr(); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			"topic", topic,
			"event_type", event.EventType,
			"job_id", event.JobID,
			"error", err,
		)
		return apperrors.Wrapf(err, apperrors.ErrCodeBroker, "publish %s to %s", event.EventType, topic)
	}

	p.logger.DebugContext(ctx, "event published",
		"topic", topic,
		"event_type", event.EventType,
		"job_id", event.JobID,
	)
	return nil
}

// Ping verifies broker reachability. Used by the gateway health endpoint.
func (p *Producer) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBroker, "broker unreachable")
	}
	return nil
}

// Close flushes outstanding records (bounded) and closes the client.
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("producer flush did not complete", "error", err)
	}
	p.client.Close()
	p.logger.Info("kafka producer closed")
}

// connect creates a client and verifies reachability with bounded retries.
// The client itself is cheap to build; the retry loop guards the first
// round-trip so a process does not come up without its broker.
func connect(cfg config.KafkaConfig, logger *slog.Logger, opts []kgo.Opt) (*kgo.Client, error) {
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBroker, "create kafka client")
	}

	var pingErr error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		pingErr = client.Ping(ctx)
		cancel()
		if pingErr == nil {
			logger.Info("kafka connected", "brokers", cfg.Brokers())
			return client, nil
		}
		logger.Warn("kafka brokers not available, retrying",
			"brokers", cfg.Brokers(),
			"attempt", attempt,
			"max_attempts", cfg.ConnectRetries,
			"backoff", cfg.ConnectBackoff,
			"error", pingErr,
		)
		if attempt < cfg.ConnectRetries {
			time.Sleep(cfg.ConnectBackoff)
		}
	}

	client.Close()
	return nil, apperrors.Wrapf(pingErr, apperrors.ErrCodeBroker,
		"connect to kafka after %d attempts", cfg.ConnectRetries)
}
