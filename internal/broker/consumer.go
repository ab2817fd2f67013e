package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// Handler processes one decoded event. Returning an error means the event
// was NOT handled (as opposed to handled-with-failure-emitted); the consumer
// then invokes the failure reporter so the job still converges to FAILED.
type Handler func(ctx context.Context, topic string, event model.JobEvent) error

// FailureReporter is invoked for events whose handler errored or panicked
// and whose job_id could be parsed. Implementations publish the dual
// job_failed / terminal job_progress pair.
type FailureReporter func(ctx context.Context, jobID string, err error)

// Consumer runs an at-least-once consume loop over a consumer group.
// Offsets autocommit on an interval, so a failed handler loses the message;
// the FailureReporter is the application-level compensation.
type Consumer struct {
	client    *kgo.Client
	logger    *slog.Logger
	group     string
	topics    []string
	onFailure FailureReporter
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Kafka  config.KafkaConfig
	Group  string
	Topics []string
	Logger *slog.Logger
	// OnFailure is optional; without it, unhandled events are only logged.
	OnFailure FailureReporter
}

// NewConsumer connects a group consumer, retrying per the bounded connect
// policy. Consumption starts at the earliest offset when the group has no
// committed position.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "kafka_consumer", "group", opts.Group)

	client, err := connect(opts.Kafka, logger, []kgo.Opt{
		kgo.SeedBrokers(opts.Kafka.Brokers()...),
		kgo.ConsumerGroup(opts.Group),
		kgo.ConsumeTopics(opts.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitInterval(opts.Kafka.AutoCommitInterval),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("kafka consumer subscribed", "topics", opts.Topics)
	return &Consumer{
		client:    client,
		logger:    logger,
		group:     opts.Group,
		topics:    opts.Topics,
		onFailure: opts.OnFailure,
	}, nil
}

// Run polls until the context is canceled or the client is closed. Decode
// failures and handler errors are logged and skipped; the offset still
// commits.
func (c *Consumer) Run(ctx context.Context, handler Handler) {
	c.logger.InfoContext(ctx, "consumer loop started")
	defer c.logger.Info("consumer loop finished")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handleRecord(ctx, record, handler)
		})
	}
}

// Close releases the group membership and the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func (c *Consumer) handleRecord(ctx context.Context, record *kgo.Record, handler Handler) {
	var event model.JobEvent
	if err := json.Unmarshal(record.Value, &event); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode event, skipping",
			"topic", record.Topic,
			"offset", record.Offset,
			"error", err,
		)
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = model.EpochSeconds(record.Timestamp)
	}

	err := c.invoke(ctx, record.Topic, event, handler)
	if err == nil {
		return
	}

	c.logger.ErrorContext(ctx, "event handler failed",
		"topic", record.Topic,
		"event_type", event.EventType,
		"job_id", event.JobID,
		"error", err,
	)
	if c.onFailure != nil && event.JobID != "" {
		c.onFailure(ctx, event.JobID, err)
	}
}

// invoke runs the handler with panic isolation: a panicking handler must not
// take down the consume loop.
func (c *Consumer) invoke(ctx context.Context, topic string, event model.JobEvent, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "event handler panicked",
				"topic", topic,
				"job_id", event.JobID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = apperrors.Internalf("handler panic: %v", r)
		}
	}()
	return handler(ctx, topic, event)
}
