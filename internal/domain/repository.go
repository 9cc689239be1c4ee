package domain

import (
	"context"
	"io"
)

// HotspotRepository persists hotspots. Implementations return ErrNotFound
// when a Get, Update or Delete matches no row.
type HotspotRepository interface {
	Get(ctx context.Context, id string) (Hotspot, error)
	// List returns every hotspot, newest first.
	List(ctx context.Context) ([]Hotspot, error)
	// ListByBounds returns hotspots inside b, newest first.
	ListByBounds(ctx context.Context, b MapBounds) ([]Hotspot, error)
	// ListWithinRadius returns hotspots within radiusKm of center, newest first.
	ListWithinRadius(ctx context.Context, center UserLocation, radiusKm float64) ([]Hotspot, error)
	Create(ctx context.Context, in HotspotInput) (Hotspot, error)
	Update(ctx context.Context, id string, patch HotspotPatch) (Hotspot, error)
	Delete(ctx context.Context, id string) error
}

// PhotoStore uploads hotspot photos and returns their public URL.
type PhotoStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// UserLocator resolves an approximate position for a lookup key, such as a
// client IP address.
type UserLocator interface {
	Locate(ctx context.Context, key string) (UserLocation, error)
}

// LocationError explains why a position could not be acquired.
type LocationError struct {
	Reason string
	Err    error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return "location unavailable: " + e.Reason + ": " + e.Err.Error()
	}
	return "location unavailable: " + e.Reason
}

func (e *LocationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrLocationUnavailable
}
