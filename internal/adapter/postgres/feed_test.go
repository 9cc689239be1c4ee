package postgres

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeListener struct {
	ch       chan *pq.Notification
	listened []string
	closed   bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{ch: make(chan *pq.Notification, 8)}
}

func (f *fakeListener) Listen(channel string) error {
	f.listened = append(f.listened, channel)
	return nil
}
func (f *fakeListener) NotificationChannel() <-chan *pq.Notification { return f.ch }
func (f *fakeListener) Ping() error                                   { return nil }
func (f *fakeListener) Close() error                                  { f.closed = true; return nil }

func (f *fakeListener) send(payload string) {
	f.ch <- &pq.Notification{Channel: NotifyChannel, Extra: payload}
}

type fakeGetter struct {
	rows map[string]domain.Hotspot
}

func (g *fakeGetter) Get(_ context.Context, id string) (domain.Hotspot, error) {
	h, ok := g.rows[id]
	if !ok {
		return domain.Hotspot{}, domain.ErrNotFound
	}
	return h, nil
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) handle(ev domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChangeEvent(nil), r.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runFeed subscribes in the background and returns a stop func that waits for exit.
func runFeed(t *testing.T, f *Feed, rec *recorder) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Subscribe(ctx, rec.handle) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("feed did not stop")
		}
	}
}

// --- tests ---

func TestFeed_DeliversChanges(t *testing.T) {
	l := newFakeListener()
	getter := &fakeGetter{rows: map[string]domain.Hotspot{
		"a": {ID: "a", Title: "Flood", Severity: domain.SeverityHigh},
	}}
	f := newFeed(l, getter, observability.NewMetricsForTesting(), discardLogger())
	rec := &recorder{}
	stop := runFeed(t, f, rec)

	l.send(`{"type":"INSERT","id":"a"}`)
	l.send(`{"type":"DELETE","id":"b"}`)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	stop()

	got := rec.snapshot()
	assert.Equal(t, domain.ChangeInsert, got[0].Type)
	require.NotNil(t, got[0].Hotspot)
	assert.Equal(t, "Flood", got[0].Hotspot.Title)
	assert.Equal(t, domain.ChangeEvent{Type: domain.ChangeDelete, ID: "b"}, got[1])
	assert.Equal(t, []string{NotifyChannel}, l.listened)
}

func TestFeed_DropsBadPayloads(t *testing.T) {
	l := newFakeListener()
	f := newFeed(l, &fakeGetter{rows: map[string]domain.Hotspot{}}, observability.NewMetricsForTesting(), discardLogger())
	rec := &recorder{}
	stop := runFeed(t, f, rec)

	l.send(`not json`)
	l.send(`{"type":"TRUNCATE","id":"a"}`)
	l.send(`{"type":"UPDATE"}`)
	l.send(`{"type":"UPDATE","id":"vanished"}`)
	l.send(`{"type":"DELETE","id":"last"}`)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	stop()
	assert.Equal(t, "last", rec.snapshot()[0].ID)
}

func TestFeed_NilNotificationTriggersReconnectHook(t *testing.T) {
	l := newFakeListener()
	f := newFeed(l, &fakeGetter{}, observability.NewMetricsForTesting(), discardLogger())
	var mu sync.Mutex
	reconnects := 0
	f.OnReconnect(func() {
		mu.Lock()
		reconnects++
		mu.Unlock()
	})
	stop := runFeed(t, f, &recorder{})

	l.ch <- nil

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reconnects == 1
	}, time.Second, 10*time.Millisecond)
	stop()
}

func TestFeed_Close(t *testing.T) {
	l := newFakeListener()
	f := newFeed(l, &fakeGetter{}, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, f.Close())
	assert.True(t, l.closed)
}
