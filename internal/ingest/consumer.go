package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"audit-trail/internal/config"

	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	retryInitial = 200 * time.Millisecond
	retryMax     = 30 * time.Second
)

// Consumer reads events from one Kafka topic as part of a consumer group.
// Offsets are committed only after every record of a poll has been handled,
// so delivery is at-least-once and the dedup gate absorbs redeliveries.
type Consumer struct {
	client *kgo.Client
	proc   *Processor
	logger *slog.Logger
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewConsumer(cfg config.KafkaConfig, proc *Processor, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return newConsumer(client, proc, logger), nil
}

func newConsumer(client *kgo.Client, proc *Processor, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{client: client, proc: proc, logger: logger, sleep: sleepCtx}
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			r := iter.Next()
			if err := c.Handle(ctx, r.Topic, r.Key, r.Value); err != nil {
				return err
			}
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
		}
	}
}

// Handle processes one message. Malformed and rejected events are logged and
// skipped; transient failures are retried with backoff until ctx is done.
// The message key stands in for a missing event_id.
func (c *Consumer) Handle(ctx context.Context, topic string, key, value []byte) error {
	ev, err := DecodeEvent(value)
	if err != nil {
		c.logger.WarnContext(ctx, "skipping malformed audit event", "topic", topic, "key", string(key), "error", err)
		c.proc.metrics.IncIngestOutcome("unknown", string(OutcomeRejected))
		return nil
	}
	if ev.EventID == "" {
		ev.EventID = string(key)
	}

	delay := retryInitial
	for {
		res, err := c.proc.Process(ctx, ev)
		if err == nil || res.Outcome == OutcomeRejected {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.logger.WarnContext(ctx, "retrying audit event", "event_id", ev.EventID, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, retryMax)
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
