package hotspot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
)

// Notification messages shown to users.
const (
	MsgCreateFailed = "Failed to create hotspot"
	MsgUpdateFailed = "Failed to update hotspot, reverted"
	MsgDeleteFailed = "Failed to delete hotspot, reverted"
	MsgUpdated      = "Hotspot updated"
	MsgDeleted      = "Hotspot deleted"
)

// Session owns the in-memory hotspot list that the map renders. Mutations are
// applied locally before their round trip and reconciled afterwards, and the
// realtime feed is merged in by ID so either arrival order gives the same
// result.
type Session struct {
	store    *Store
	feed     domain.ChangeFeed
	notifier domain.Notifier
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	st     state
	loaded bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a Session. feed and notifier may be nil.
func NewSession(store *Store, feed domain.ChangeFeed, notifier domain.Notifier, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Session{
		store:    store,
		feed:     feed,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		st:       newState(),
	}
}

// Start loads the hotspot list and subscribes to the realtime feed. A failed
// initial load is logged; the next Reload fills the list.
func (s *Session) Start(ctx context.Context) {
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("initial hotspot load failed", "error", err)
	}
	if s.feed == nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.feed.Subscribe(ctx, s.Apply); err != nil {
			s.logger.Error("realtime feed stopped", "error", err)
		}
	}()
}

// Close unsubscribes from the feed and waits for the subscription to exit.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Hotspots returns a copy of the local list.
func (s *Session) Hotspots() []domain.Hotspot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot()
}

// Visible returns the local hotspots that pass the filter criteria.
func (s *Session) Visible(c domain.FilterCriteria) []domain.Hotspot {
	return domain.VisibleHotspots(s.Hotspots(), c)
}

// Loaded reports whether an authoritative list has been loaded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// CheckReadiness implements the readiness check.
func (s *Session) CheckReadiness(ctx context.Context) error {
	if !s.Loaded() {
		return errors.New("hotspot list not loaded")
	}
	return s.store.CheckReadiness(ctx)
}

// Reload replaces the local list with the server's. On failure the current
// list is kept.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	mark := s.st.beginReload()
	s.mu.Unlock()

	list, err := s.store.Fetch(ctx)

	s.mu.Lock()
	s.st.finishReload(mark, list, err == nil)
	if err == nil {
		s.loaded = true
	}
	s.updateGaugesLocked()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("reload hotspots failed", "error", err)
		return err
	}
	s.logger.Debug("hotspots reloaded", "count", len(list))
	return nil
}

// Create inserts a placeholder right away, then swaps it for the stored record
// once the server answers. Invalid input is rejected before any local change.
func (s *Session) Create(ctx context.Context, in domain.HotspotInput) (*domain.Hotspot, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	placeholder := domain.Hotspot{
		ID:          domain.NewPlaceholderID(),
		Lat:         in.Lat,
		Lng:         in.Lng,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Photo:       in.Photo,
		Address:     in.Address,
		CreatedAt:   domain.Now(),
	}
	s.mu.Lock()
	s.st.prepend(placeholder)
	s.updateGaugesLocked()
	s.mu.Unlock()

	created, err := s.store.Create(ctx, in)
	if err != nil {
		s.mu.Lock()
		s.st.remove(placeholder.ID)
		s.updateGaugesLocked()
		s.mu.Unlock()
		s.metrics.Reconciliations.WithLabelValues("create", "rolled_back").Inc()
		s.notifier.Notify(domain.Notification{Level: domain.NotifyError, Message: MsgCreateFailed})
		return nil, err
	}

	s.mu.Lock()
	var changed bool
	switch {
	case s.st.deleted(created.ID), s.st.has(created.ID):
		// The feed already delivered this record, or it was deleted since.
		s.st.remove(placeholder.ID)
	default:
		s.st.confirm(placeholder.ID, *created)
		changed = true
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.metrics.Reconciliations.WithLabelValues("create", "confirmed").Inc()
	if changed {
		s.notifier.BroadcastChange(domain.ChangeEvent{Type: domain.ChangeInsert, ID: created.ID, Hotspot: created})
	}
	return created, nil
}

// Update applies patch locally, then on the server. A failed round trip
// reloads the full list.
func (s *Session) Update(ctx context.Context, id string, patch domain.HotspotPatch) (*domain.Hotspot, error) {
	if domain.IsPlaceholderID(id) {
		return nil, domain.ErrPendingHotspot
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if h, ok := s.st.get(id); ok {
		s.st.replace(id, patch.Apply(h))
	}
	s.mu.Unlock()

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		s.revert(ctx, "update", MsgUpdateFailed)
		return nil, err
	}

	s.mu.Lock()
	changed := !s.st.deleted(id) && s.st.replace(id, *updated)
	s.mu.Unlock()

	s.metrics.Reconciliations.WithLabelValues("update", "confirmed").Inc()
	s.notifier.Notify(domain.Notification{Level: domain.NotifyInfo, Message: MsgUpdated})
	if changed {
		s.notifier.BroadcastChange(domain.ChangeEvent{Type: domain.ChangeUpdate, ID: id, Hotspot: updated})
	}
	return updated, nil
}

// Delete removes the hotspot locally, then on the server. A failed round trip
// reloads the full list so the entry reappears if it still exists.
func (s *Session) Delete(ctx context.Context, id string) error {
	if domain.IsPlaceholderID(id) {
		return domain.ErrPendingHotspot
	}

	s.mu.Lock()
	s.st.remove(id)
	s.st.tombstone(id)
	s.updateGaugesLocked()
	s.mu.Unlock()

	if err := s.store.Remove(ctx, id); err != nil {
		s.mu.Lock()
		s.st.forget(id)
		s.mu.Unlock()
		s.revert(ctx, "delete", MsgDeleteFailed)
		return err
	}

	s.metrics.Reconciliations.WithLabelValues("delete", "confirmed").Inc()
	s.notifier.Notify(domain.Notification{Level: domain.NotifyInfo, Message: MsgDeleted})
	s.notifier.BroadcastChange(domain.ChangeEvent{Type: domain.ChangeDelete, ID: id})
	return nil
}

func (s *Session) revert(ctx context.Context, op, message string) {
	s.metrics.Reconciliations.WithLabelValues(op, "reloaded").Inc()
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("revert reload failed, keeping local list", "op", op, "error", err)
	}
	s.notifier.Notify(domain.Notification{Level: domain.NotifyError, Message: message})
}

// Apply merges one realtime change into the local list. Applying the same
// change twice leaves the list as applying it once.
func (s *Session) Apply(ev domain.ChangeEvent) {
	s.mu.Lock()
	changed := s.applyLocked(ev)
	s.updateGaugesLocked()
	s.mu.Unlock()

	if !changed {
		return
	}
	s.notifier.BroadcastChange(ev)
	switch ev.Type {
	case domain.ChangeInsert:
		s.notifier.Notify(domain.Notification{Level: domain.NotifyInfo, Message: "New hotspot: " + ev.Hotspot.Title})
	case domain.ChangeUpdate:
		s.notifier.Notify(domain.Notification{Level: domain.NotifyInfo, Message: "Updated hotspot: " + ev.Hotspot.Title})
	case domain.ChangeDelete:
		s.notifier.Notify(domain.Notification{Level: domain.NotifyInfo, Message: MsgDeleted})
	}
}

func (s *Session) applyLocked(ev domain.ChangeEvent) bool {
	switch ev.Type {
	case domain.ChangeInsert:
		if ev.Hotspot == nil || s.st.deleted(ev.ID) {
			return false
		}
		if cur, ok := s.st.get(ev.ID); ok {
			if cur.Equal(*ev.Hotspot) {
				return false
			}
			return s.st.replace(ev.ID, *ev.Hotspot)
		}
		s.st.pushBack(*ev.Hotspot)
		return true
	case domain.ChangeUpdate:
		if ev.Hotspot == nil {
			return false
		}
		cur, ok := s.st.get(ev.ID)
		if !ok || cur.Equal(*ev.Hotspot) {
			return false
		}
		return s.st.replace(ev.ID, *ev.Hotspot)
	case domain.ChangeDelete:
		s.st.tombstone(ev.ID)
		_, ok := s.st.remove(ev.ID)
		return ok
	}
	return false
}

func (s *Session) updateGaugesLocked() {
	s.metrics.SessionHotspots.Set(float64(len(s.st.items)))
	if s.loaded {
		s.metrics.SessionLoaded.Set(1)
	} else {
		s.metrics.SessionLoaded.Set(0)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.Notification)         {}
func (nopNotifier) BroadcastChange(domain.ChangeEvent) {}
