package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
	"github.com/lib/pq"
)

const feedSource = "postgres"

// pingInterval keeps idle listener connections from being reaped by proxies.
const pingInterval = 90 * time.Second

// notificationSource is the subset of *pq.Listener the feed reads from.
type notificationSource interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type hotspotGetter interface {
	Get(ctx context.Context, id string) (domain.Hotspot, error)
}

// Feed implements domain.ChangeFeed over LISTEN/NOTIFY. Notifications carry
// only the change type and id; inserted and updated rows are re-read.
type Feed struct {
	source      notificationSource
	repo        hotspotGetter
	onReconnect func()
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewFeed opens a dedicated listener connection for dsn.
func NewFeed(dsn string, repo hotspotGetter, metrics *observability.Metrics, logger *slog.Logger) *Feed {
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("postgres listener connection attempt failed", "error", err)
		case pq.ListenerEventDisconnected:
			logger.Warn("postgres listener disconnected", "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("postgres listener reconnected")
		}
	})
	return newFeed(listener, repo, metrics, logger)
}

func newFeed(source notificationSource, repo hotspotGetter, metrics *observability.Metrics, logger *slog.Logger) *Feed {
	return &Feed{source: source, repo: repo, metrics: metrics, logger: logger}
}

// OnReconnect registers fn to run after the listener reconnects. NOTIFY is
// not durable, so changes made while disconnected are only recovered by a
// full reload.
func (f *Feed) OnReconnect(fn func()) {
	f.onReconnect = fn
}

// Subscribe listens for changes and delivers them to handler until ctx is
// cancelled.
func (f *Feed) Subscribe(ctx context.Context, handler domain.ChangeHandler) error {
	if err := f.source.Listen(NotifyChannel); err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	f.logger.Info("listening for hotspot changes", "channel", NotifyChannel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	notifications := f.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			// A nil notification signals the connection was re-established.
			if n == nil {
				if f.onReconnect != nil {
					f.onReconnect()
				}
				continue
			}
			f.dispatch(ctx, n.Extra, handler)
		case <-ticker.C:
			if err := f.source.Ping(); err != nil {
				f.logger.Warn("postgres listener ping failed", "error", err)
			}
		}
	}
}

// Close releases the listener connection.
func (f *Feed) Close() error {
	return f.source.Close()
}

type notifyPayload struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (f *Feed) dispatch(ctx context.Context, payload string, handler domain.ChangeHandler) {
	ev, err := f.resolve(ctx, payload)
	if err != nil {
		f.metrics.FeedErrors.WithLabelValues(feedSource).Inc()
		f.logger.Warn("dropping hotspot change notification", "payload", payload, "error", err)
		return
	}
	f.metrics.FeedEvents.WithLabelValues(feedSource, string(ev.Type)).Inc()
	handler(ev)
}

func (f *Feed) resolve(ctx context.Context, payload string) (domain.ChangeEvent, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode payload: %w", err)
	}
	ct, err := domain.ParseChangeType(p.Type)
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	if p.ID == "" {
		return domain.ChangeEvent{}, errors.New("payload has no id")
	}

	ev := domain.ChangeEvent{Type: ct, ID: p.ID}
	if ct == domain.ChangeDelete {
		return ev, nil
	}

	h, err := f.repo.Get(ctx, p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted before we could read it; the DELETE notification follows.
		return domain.ChangeEvent{}, fmt.Errorf("hotspot %s vanished before read: %w", p.ID, err)
	}
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("read changed hotspot: %w", err)
	}
	ev.Hotspot = &h
	return ev, nil
}
