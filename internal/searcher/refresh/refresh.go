// Package refresh consumes index events from Kafka and drops the caches of
// the lookup service so that rewritten map files are picked up.
package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/events"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/kafka"
)

// ClearFunc empties every cache that may hold stale map file content.
type ClearFunc func(ctx context.Context) error

// Consumer drives cache refreshes from the index event topic.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "refresh-consumer"),
	}
}

// Start consumes index events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("refresh consumer starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that clears the caches for
// every well-formed IndexEvent. Malformed messages are logged and skipped so
// they are still committed.
func HandleMessage(clear ClearFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "refresh-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[events.IndexEvent](value)
		if err != nil {
			logger.Error("failed to decode index event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := clear(ctx); err != nil {
			return fmt.Errorf("clearing caches for %s: %w", event.Key(), err)
		}
		logger.Info("caches cleared for updated map file",
			"channel", event.Channel,
			"subdir", event.Subdir,
			"entries", event.Entries,
			"generated_at", event.GeneratedAt,
		)
		return nil
	}
}
