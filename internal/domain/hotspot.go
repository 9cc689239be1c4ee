package domain

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Severity ranks how dangerous a reported hazard is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most dangerous.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity accepts one of the four severity names, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return sev, nil
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Hotspot is a user-reported hazard marker.
type Hotspot struct {
	ID          string    `json:"id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Photo       string    `json:"photo,omitempty"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location returns the hotspot's position.
func (h Hotspot) Location() UserLocation {
	return UserLocation{Lat: h.Lat, Lng: h.Lng}
}

// Equal reports whether h and o describe the same record. CreatedAt is
// compared as an instant, so a row decoded from JSON equals the row the
// database driver scanned.
func (h Hotspot) Equal(o Hotspot) bool {
	return h.ID == o.ID &&
		h.Lat == o.Lat &&
		h.Lng == o.Lng &&
		h.Title == o.Title &&
		h.Description == o.Description &&
		h.Severity == o.Severity &&
		h.Photo == o.Photo &&
		h.Address == o.Address &&
		h.CreatedAt.Equal(o.CreatedAt)
}

// Pending reports whether the hotspot is a local placeholder that the server
// has not confirmed yet.
func (h Hotspot) Pending() bool {
	return IsPlaceholderID(h.ID)
}

// HotspotInput is the payload for creating a hotspot.
type HotspotInput struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Photo       string   `json:"photo,omitempty"`
	Address     string   `json:"address,omitempty"`
}

// Normalize trims free-text fields and validates the input. It returns the
// cleaned copy so callers never persist untrimmed titles.
func (in HotspotInput) Normalize() (HotspotInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	if in.Title == "" {
		return in, ErrEmptyTitle
	}
	if !in.Severity.Valid() {
		return in, fmt.Errorf("%w: %q", ErrInvalidSeverity, in.Severity)
	}
	if err := ValidateCoordinates(in.Lat, in.Lng); err != nil {
		return in, err
	}
	return in, nil
}

// HotspotPatch is a partial update. Nil fields are left unchanged.
type HotspotPatch struct {
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Photo       *string   `json:"photo,omitempty"`
	Address     *string   `json:"address,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p HotspotPatch) Empty() bool {
	return p.Lat == nil && p.Lng == nil && p.Title == nil && p.Description == nil &&
		p.Severity == nil && p.Photo == nil && p.Address == nil
}

// Validate checks the fields that are set.
func (p HotspotPatch) Validate() error {
	if p.Empty() {
		return ErrNoFieldsToUpdate
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.Severity != nil && !p.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, *p.Severity)
	}
	if p.Lat != nil && (*p.Lat < -90 || *p.Lat > 90) {
		return ErrInvalidCoordinates
	}
	if p.Lng != nil && (*p.Lng < -180 || *p.Lng > 180) {
		return ErrInvalidCoordinates
	}
	return nil
}

// Apply returns h with the patch's set fields copied over.
func (p HotspotPatch) Apply(h Hotspot) Hotspot {
	if p.Lat != nil {
		h.Lat = *p.Lat
	}
	if p.Lng != nil {
		h.Lng = *p.Lng
	}
	if p.Title != nil {
		h.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Severity != nil {
		h.Severity = *p.Severity
	}
	if p.Photo != nil {
		h.Photo = *p.Photo
	}
	if p.Address != nil {
		h.Address = *p.Address
	}
	return h
}

const placeholderPrefix = "temp-"

var placeholderSeq atomic.Uint64

// NewPlaceholderID returns a local-only ID of the form temp-<unix-millis>-<n>.
// The sequence suffix keeps IDs unique when two creates land in the same
// millisecond.
func NewPlaceholderID() string {
	return fmt.Sprintf("%s%d-%d", placeholderPrefix, clock.Now().UnixMilli(), placeholderSeq.Add(1))
}

// IsPlaceholderID reports whether id was produced by NewPlaceholderID.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

// ValidateCoordinates rejects positions outside the WGS84 range, including
// NaN and infinities.
func ValidateCoordinates(lat, lng float64) error {
	if !(lat >= -90 && lat <= 90) || !(lng >= -180 && lng <= 180) {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, lat, lng)
	}
	return nil
}
