package hotspot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
)

var baseTime = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

// fakeRepo is an in-memory HotspotRepository. Gates, when set, make the
// matching call wait until the test releases it.
type fakeRepo struct {
	mu    sync.Mutex
	rows  []domain.Hotspot // newest first
	seq   int
	calls map[string]int

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	createGate chan struct{}
	createSeen chan struct{}
	// List snapshots the rows before waiting on listGate.
	listGate chan struct{}
	listSeen chan struct{}

	lastBounds domain.MapBounds
	lastCenter domain.UserLocation
	lastRadius float64
}

func newFakeRepo(rows ...domain.Hotspot) *fakeRepo {
	return &fakeRepo{rows: rows, calls: make(map[string]int)}
}

func (f *fakeRepo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRepo) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeRepo) Get(_ context.Context, id string) (domain.Hotspot, error) {
	f.hit("get")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.rows {
		if h.ID == id {
			return h, nil
		}
	}
	return domain.Hotspot{}, domain.ErrNotFound
}

func (f *fakeRepo) List(_ context.Context) ([]domain.Hotspot, error) {
	f.hit("list")
	f.mu.Lock()
	err := f.listErr
	rows := append([]domain.Hotspot{}, f.rows...)
	gate, seen := f.listGate, f.listSeen
	f.mu.Unlock()

	if seen != nil {
		seen <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// holdList makes the next List calls read the rows and then block until the
// returned release func is called.
func (f *fakeRepo) holdList() (seen <-chan struct{}, release func()) {
	s := make(chan struct{}, 1)
	g := make(chan struct{})
	f.mu.Lock()
	f.listSeen, f.listGate = s, g
	f.mu.Unlock()
	return s, func() {
		f.mu.Lock()
		f.listSeen, f.listGate = nil, nil
		f.mu.Unlock()
		close(g)
	}
}

func (f *fakeRepo) ListByBounds(_ context.Context, b domain.MapBounds) ([]domain.Hotspot, error) {
	f.hit("list_by_bounds")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastBounds = b
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []domain.Hotspot{}
	for _, h := range f.rows {
		if domain.WithinBounds(h.Lat, h.Lng, b) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListWithinRadius(_ context.Context, center domain.UserLocation, km float64) ([]domain.Hotspot, error) {
	f.hit("list_within_radius")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCenter, f.lastRadius = center, km
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []domain.Hotspot{}
	for _, h := range f.rows {
		if domain.WithinRadius(h.Location(), center, km) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, in domain.HotspotInput) (domain.Hotspot, error) {
	f.hit("create")
	if f.createSeen != nil {
		f.createSeen <- struct{}{}
	}
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Hotspot{}, f.createErr
	}
	f.seq++
	h := domain.Hotspot{
		ID:          fmt.Sprintf("srv-%d", f.seq),
		Lat:         in.Lat,
		Lng:         in.Lng,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Photo:       in.Photo,
		Address:     in.Address,
		CreatedAt:   baseTime.Add(time.Duration(f.seq) * time.Minute),
	}
	f.rows = append([]domain.Hotspot{h}, f.rows...)
	return h, nil
}

func (f *fakeRepo) Update(_ context.Context, id string, p domain.HotspotPatch) (domain.Hotspot, error) {
	f.hit("update")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Hotspot{}, f.updateErr
	}
	for i, h := range f.rows {
		if h.ID == id {
			f.rows[i] = p.Apply(h)
			return f.rows[i], nil
		}
	}
	return domain.Hotspot{}, domain.ErrNotFound
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.hit("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, h := range f.rows {
		if h.ID == id {
			f.rows = append(f.rows[:i:i], f.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
	changes       []domain.ChangeEvent
}

func (n *fakeNotifier) Notify(x domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, x)
}

func (n *fakeNotifier) BroadcastChange(ev domain.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, ev)
}

func (n *fakeNotifier) errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.notifications {
		if x.Level == domain.NotifyError {
			out = append(out, x.Message)
		}
	}
	return out
}

func (n *fakeNotifier) broadcasts() []domain.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.ChangeEvent(nil), n.changes...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(repo domain.HotspotRepository, opts ...Option) *Store {
	return NewStore(repo, observability.NewMetricsForTesting(), discardLogger(), opts...)
}

func seedRows() []domain.Hotspot {
	return []domain.Hotspot{
		{ID: "b", Lat: 25.04, Lng: 121.56, Title: "Fallen tree", Severity: domain.SeverityMedium, CreatedAt: baseTime.Add(-time.Minute)},
		{ID: "a", Lat: 25.03, Lng: 121.55, Title: "Flooded underpass", Severity: domain.SeverityHigh, CreatedAt: baseTime.Add(-2 * time.Minute)},
	}
}

func ids(list []domain.Hotspot) []string {
	out := make([]string, len(list))
	for i, h := range list {
		out[i] = h.ID
	}
	return out
}
