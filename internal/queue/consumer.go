package queue

import (
	"context"
	"encoding/json"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Settler is the slice of the settlement service the consumer needs.
type Settler interface {
	Settle(ctx context.Context, in app.SettleInput) (app.SettleResult, error)
}

// Consumer feeds payment notifications from a Kafka topic into settlement.
// Offsets are committed only after Settle returns, so a notification that
// fails transiently is redelivered; the receipt claim inside Settle absorbs
// the resulting duplicates.
type Consumer struct {
	reader  *kafka.Reader
	settler Settler
	logger  zerolog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, settler Settler, logger zerolog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		settler: settler,
		logger:  logger,
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !c.process(ctx, m.Value) {
			// Leave the offset uncommitted; the message comes back after
			// a rebalance or restart.
			continue
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error().Err(err).Msg("offset commit failed")
		}
	}
}

// process applies one raw notification and reports whether its offset may be
// committed. Malformed messages can never succeed and are committed to keep
// them from wedging the partition.
func (c *Consumer) process(ctx context.Context, raw []byte) bool {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		c.logger.Error().Err(err).Msg("notification unmarshal failed")
		return true
	}
	if err := n.Validate(); err != nil {
		c.logger.Error().Err(err).Str("order_id", n.OrderID).Msg("invalid notification dropped")
		return true
	}

	res, err := c.settler.Settle(ctx, app.SettleInput{
		OrderID:        n.OrderID,
		IdempotencyKey: n.IdempotencyKey,
		Outcome:        app.Outcome(n.Status),
	})
	if err != nil {
		c.logger.Error().Err(err).Str("order_id", n.OrderID).Msg("settlement from topic failed")
		return false
	}
	c.logger.Info().
		Str("order_id", n.OrderID).
		Str("result", string(res.Status)).
		Msg("notification settled from topic")
	return true
}
