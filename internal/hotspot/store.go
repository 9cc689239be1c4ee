// Package hotspot holds the hotspot service: the Store that talks to the
// database and photo bucket, and the Session that keeps an optimistic local
// copy reconciled with the realtime feed.
package hotspot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
)

// PhotoPrefix is the object-name prefix for uploaded hotspot photos.
const PhotoPrefix = "hotspot-photos/"

// Store performs hotspot round trips against a domain.HotspotRepository.
// List-style reads are fail-silent: errors are logged and an empty list is
// returned.
type Store struct {
	repo      domain.HotspotRepository
	photos    domain.PhotoStore
	geocoder  domain.Geocoder
	publisher domain.ChangePublisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures optional Store collaborators.
type Option func(*Store)

// WithPhotoStore enables UploadPhoto.
func WithPhotoStore(p domain.PhotoStore) Option {
	return func(s *Store) { s.photos = p }
}

// WithGeocoder attaches addresses to new hotspots that arrive without one.
func WithGeocoder(g domain.Geocoder) Option {
	return func(s *Store) { s.geocoder = g }
}

// WithPublisher announces every successful mutation.
func WithPublisher(p domain.ChangePublisher) Option {
	return func(s *Store) { s.publisher = p }
}

func NewStore(repo domain.HotspotRepository, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{repo: repo, metrics: metrics, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) observe(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.StoreRequests.WithLabelValues(op, outcome).Inc()
	s.metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Fetch returns every hotspot, newest first.
func (s *Store) Fetch(ctx context.Context) ([]domain.Hotspot, error) {
	start := time.Now()
	list, err := s.repo.List(ctx)
	s.observe("list", start, err)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// List is Fetch with failures logged and reported as an empty list.
func (s *Store) List(ctx context.Context) []domain.Hotspot {
	list, err := s.Fetch(ctx)
	if err != nil {
		s.logger.Error("list hotspots failed", "error", err)
		return []domain.Hotspot{}
	}
	return list
}

// ListByLocation returns hotspots within radiusKm of (lat, lng), newest first.
func (s *Store) ListByLocation(ctx context.Context, lat, lng, radiusKm float64) []domain.Hotspot {
	if err := domain.ValidateCoordinates(lat, lng); err != nil || !validRadius(radiusKm) {
		s.logger.Warn("list hotspots by location rejected", "lat", lat, "lng", lng, "radius_km", radiusKm)
		return []domain.Hotspot{}
	}
	start := time.Now()
	list, err := s.repo.ListWithinRadius(ctx, domain.UserLocation{Lat: lat, Lng: lng}, radiusKm)
	s.observe("list_by_location", start, err)
	if err != nil {
		s.logger.Error("list hotspots by location failed", "error", err, "lat", lat, "lng", lng)
		return []domain.Hotspot{}
	}
	return list
}

// ListByBounds returns hotspots inside the rectangle, newest first. A box
// with east < west is treated as empty.
func (s *Store) ListByBounds(ctx context.Context, north, south, east, west float64) []domain.Hotspot {
	b := domain.MapBounds{North: north, South: south, East: east, West: west}
	if b.Empty() {
		return []domain.Hotspot{}
	}
	start := time.Now()
	list, err := s.repo.ListByBounds(ctx, b)
	s.observe("list_by_bounds", start, err)
	if err != nil {
		s.logger.Error("list hotspots by bounds failed", "error", err)
		return []domain.Hotspot{}
	}
	return list
}

// Create validates in, fills a missing address by reverse geocoding, and
// inserts the row. Invalid input never reaches the repository.
func (s *Store) Create(ctx context.Context, in domain.HotspotInput) (*domain.Hotspot, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	if in.Address == "" && s.geocoder != nil {
		res := domain.ReverseGeocode(ctx, s.geocoder, in.Lat, in.Lng, s.logger)
		if res.Address != nil && !res.Address.Fallback {
			in.Address = res.Address.Formatted
		}
	}

	start := time.Now()
	h, err := s.repo.Create(ctx, in)
	s.observe("create", start, err)
	if err != nil {
		s.logger.Error("create hotspot failed", "error", err, "title", in.Title)
		return nil, err
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.ChangeInsert, ID: h.ID, Hotspot: &h})
	return &h, nil
}

// Update applies patch to the hotspot with the given id.
func (s *Store) Update(ctx context.Context, id string, patch domain.HotspotPatch) (*domain.Hotspot, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	h, err := s.repo.Update(ctx, id, patch)
	s.observe("update", start, err)
	if err != nil {
		s.logger.Error("update hotspot failed", "error", err, "id", id)
		return nil, err
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.ChangeUpdate, ID: h.ID, Hotspot: &h})
	return &h, nil
}

// Delete removes the hotspot and reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, id string) bool {
	return s.Remove(ctx, id) == nil
}

// Remove is Delete with the failure reason. A missing row is ErrNotFound.
func (s *Store) Remove(ctx context.Context, id string) error {
	start := time.Now()
	err := s.repo.Delete(ctx, id)
	s.observe("delete", start, err)
	if err != nil {
		s.logger.Error("delete hotspot failed", "error", err, "id", id)
		return err
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.ChangeDelete, ID: id})
	return nil
}

// UploadPhoto stores a photo as hotspot-photos/<unix-millis><ext> and returns
// its public URL.
func (s *Store) UploadPhoto(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if s.photos == nil {
		return "", domain.ErrPhotoStoreDisabled
	}
	name := PhotoObjectName(filename, domain.Now())
	start := time.Now()
	url, err := s.photos.Upload(ctx, name, contentType, r)
	s.observe("upload_photo", start, err)
	if err != nil {
		s.logger.Error("upload photo failed", "error", err, "object", name)
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return url, nil
}

// PhotoObjectName builds the object name for a photo uploaded at t.
func PhotoObjectName(filename string, t time.Time) string {
	return fmt.Sprintf("%s%d%s", PhotoPrefix, t.UnixMilli(), strings.ToLower(path.Ext(filename)))
}

// CheckReadiness pings the repository when it supports readiness checks.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if rc, ok := s.repo.(interface{ CheckReadiness(context.Context) error }); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, ev domain.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish change failed", "error", err, "type", ev.Type, "id", ev.ID)
	}
}

func validRadius(km float64) bool {
	return km > 0 && !math.IsInf(km, 0)
}

// IsValidationError reports whether err was raised by local input checks.
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyTitle) ||
		errors.Is(err, domain.ErrInvalidSeverity) ||
		errors.Is(err, domain.ErrInvalidCoordinates) ||
		errors.Is(err, domain.ErrInvalidRadius) ||
		errors.Is(err, domain.ErrNoFieldsToUpdate)
}
