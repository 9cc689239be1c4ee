package hotspot

import "github.com/couchcryptid/hotspot-map-service/internal/domain"

// state is the Session's local hotspot list, newest first. It is not safe for
// concurrent use; the Session serializes access.
type state struct {
	items []domain.Hotspot
	// IDs deleted locally. A late create response or feed UPDATE for one of
	// these must not bring it back.
	tombstones map[string]struct{}

	// While a reload is in flight every mutation is journaled, so changes made
	// after the server list was read survive the reset.
	reloads int
	journal []change
}

type changeKind int

const (
	changePrepend changeKind = iota
	changeAppend
	changeReplace
	changeConfirm
	changeRemove
	changeTombstone
	changeForget
)

type change struct {
	kind changeKind
	id   string
	h    domain.Hotspot
}

func newState() state {
	return state{items: []domain.Hotspot{}, tombstones: make(map[string]struct{})}
}

func (s *state) record(c change) {
	if s.reloads > 0 {
		s.journal = append(s.journal, c)
	}
}

func (s *state) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *state) has(id string) bool { return s.index(id) >= 0 }

func (s *state) get(id string) (domain.Hotspot, bool) {
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return domain.Hotspot{}, false
}

func (s *state) deleted(id string) bool {
	_, ok := s.tombstones[id]
	return ok
}

func (s *state) prepend(h domain.Hotspot) {
	s.record(change{kind: changePrepend, h: h})
	s.upsert(h, true)
}

func (s *state) pushBack(h domain.Hotspot) {
	s.record(change{kind: changeAppend, h: h})
	s.upsert(h, false)
}

// replace overwrites the entry with the given id. It reports false, and
// changes nothing, when id is absent.
func (s *state) replace(id string, h domain.Hotspot) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.record(change{kind: changeReplace, id: id, h: h})
	s.items[i] = h
	return true
}

// confirm swaps a placeholder for the stored record. If the placeholder is
// gone the record goes to the front.
func (s *state) confirm(placeholderID string, h domain.Hotspot) {
	s.record(change{kind: changeConfirm, id: placeholderID, h: h})
	s.applyConfirm(placeholderID, h)
}

func (s *state) remove(id string) (domain.Hotspot, bool) {
	i := s.index(id)
	if i < 0 {
		return domain.Hotspot{}, false
	}
	s.record(change{kind: changeRemove, id: id})
	h := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return h, true
}

func (s *state) tombstone(id string) {
	s.record(change{kind: changeTombstone, id: id})
	s.tombstones[id] = struct{}{}
}

// forget drops the tombstone for id after a delete that did not happen.
func (s *state) forget(id string) {
	s.record(change{kind: changeForget, id: id})
	delete(s.tombstones, id)
}

func (s *state) upsert(h domain.Hotspot, front bool) {
	switch i := s.index(h.ID); {
	case i >= 0:
		s.items[i] = h
	case front:
		s.items = append([]domain.Hotspot{h}, s.items...)
	default:
		s.items = append(s.items, h)
	}
}

func (s *state) applyConfirm(placeholderID string, h domain.Hotspot) {
	if i := s.index(placeholderID); i >= 0 {
		if s.has(h.ID) {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			s.upsert(h, true)
			return
		}
		s.items[i] = h
		return
	}
	s.upsert(h, true)
}

// beginReload marks the start of a reload and returns the journal position
// to replay from when it finishes.
func (s *state) beginReload() int {
	s.reloads++
	return len(s.journal)
}

// finishReload ends a reload started at mark. When ok it resets to list and
// replays the changes journaled since mark; otherwise the list is untouched.
func (s *state) finishReload(mark int, list []domain.Hotspot, ok bool) {
	if ok {
		s.reset(list)
		for _, c := range s.journal[mark:] {
			s.replay(c)
		}
	}
	s.reloads--
	if s.reloads == 0 {
		s.journal = nil
	}
}

func (s *state) replay(c change) {
	switch c.kind {
	case changePrepend:
		if !s.deleted(c.h.ID) {
			s.upsert(c.h, true)
		}
	case changeAppend:
		if !s.deleted(c.h.ID) {
			s.upsert(c.h, false)
		}
	case changeReplace:
		if i := s.index(c.id); i >= 0 {
			s.items[i] = c.h
		}
	case changeConfirm:
		if !s.deleted(c.h.ID) {
			s.applyConfirm(c.id, c.h)
		}
	case changeRemove:
		if i := s.index(c.id); i >= 0 {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
		}
	case changeTombstone:
		s.tombstones[c.id] = struct{}{}
		if i := s.index(c.id); i >= 0 {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
		}
	case changeForget:
		delete(s.tombstones, c.id)
	}
}

// reset replaces the list with an authoritative copy. Tombstones for IDs the
// server still reports are dropped, since the delete evidently did not happen.
func (s *state) reset(list []domain.Hotspot) {
	s.items = append(make([]domain.Hotspot, 0, len(list)), list...)
	for _, h := range list {
		delete(s.tombstones, h.ID)
	}
}

func (s *state) snapshot() []domain.Hotspot {
	return append(make([]domain.Hotspot, 0, len(s.items)), s.items...)
}
