package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/config"
	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

const feedSource = "kafka"

// messageReader is the subset of *kafkago.Reader the feed consumes from.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes hotspot changes from Kafka. It implements domain.ChangeFeed.
type Reader struct {
	reader  messageReader
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReader creates a consumer for the configured change topic. Every service
// instance keeps its own in-memory state, so each joins a group of its own and
// sees every change.
func NewReader(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		GroupID:     instanceGroupID(cfg.KafkaGroupID),
		StartOffset: kafkago.LastOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
	})
	return &Reader{reader: r, metrics: metrics, logger: logger}
}

func instanceGroupID(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return fmt.Sprintf("%s-%s-%d", base, host, os.Getpid())
}

// Subscribe delivers changes to handler until ctx is cancelled. Read errors
// back off exponentially from 200ms up to 5s.
func (r *Reader) Subscribe(ctx context.Context, handler domain.ChangeHandler) error {
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			r.metrics.FeedErrors.WithLabelValues(feedSource).Inc()
			r.logger.Error("fetch change message failed", "error", err, "backoff", backoff)
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		ev, err := parseMessage(msg)
		if err != nil {
			r.metrics.FeedErrors.WithLabelValues(feedSource).Inc()
			r.logger.Warn("skipping malformed change message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		} else {
			r.metrics.FeedEvents.WithLabelValues(feedSource, string(ev.Type)).Inc()
			handler(ev)
		}

		if err := r.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			r.logger.Warn("commit change message failed", "error", err, "offset", msg.Offset)
		}
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func parseMessage(msg kafkago.Message) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	ct, err := domain.ParseChangeType(string(ev.Type))
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	ev.Type = ct
	if ev.ID == "" {
		return domain.ChangeEvent{}, errors.New("change event has no id")
	}
	if ct != domain.ChangeDelete && ev.Hotspot == nil {
		return domain.ChangeEvent{}, fmt.Errorf("%s event for %s has no hotspot", ct, ev.ID)
	}
	return ev, nil
}
