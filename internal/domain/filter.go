package domain

import "strings"

// SpatialMode names which spatial filter a FilterCriteria selects.
type SpatialMode string

const (
	SpatialBounds SpatialMode = "bounds"
	SpatialRadius SpatialMode = "radius"
	SpatialAll    SpatialMode = "all"
)

// FilterCriteria captures the map's current filter state.
type FilterCriteria struct {
	Location            *UserLocation
	Radius              RadiusOption
	OutOfRangeDetection bool
	Bounds              *MapBounds
	Severities          []Severity
	Query               string
}

// Mode reports which spatial filter applies. Bounds win when out-of-range
// detection is on and a viewport is known; otherwise a known location
// selects the radius filter; otherwise everything passes.
func (c FilterCriteria) Mode() SpatialMode {
	if c.OutOfRangeDetection && c.Bounds != nil {
		return SpatialBounds
	}
	if c.Location != nil {
		return SpatialRadius
	}
	return SpatialAll
}

func (c FilterCriteria) radiusKm() float64 {
	if c.Radius <= 0 {
		return DefaultRadius.Km()
	}
	return c.Radius.Km()
}

func (c FilterCriteria) spatialMatch(p UserLocation) bool {
	switch c.Mode() {
	case SpatialBounds:
		return WithinBounds(p.Lat, p.Lng, *c.Bounds)
	case SpatialRadius:
		return WithinRadius(p, *c.Location, c.radiusKm())
	default:
		return true
	}
}

// VisibleHotspots returns the hotspots passing the spatial, severity and text
// filters, in input order.
func VisibleHotspots(hotspots []Hotspot, c FilterCriteria) []Hotspot {
	out := make([]Hotspot, 0, len(hotspots))
	sevs := severitySet(c.Severities)
	for _, h := range hotspots {
		if !c.spatialMatch(h.Location()) {
			continue
		}
		if len(sevs) > 0 && !sevs[h.Severity] {
			continue
		}
		if !MatchesQuery(c.Query, h.Title, h.Description) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// VisibleShelters returns the shelters passing the spatial and text filters,
// in input order. Severity does not apply to shelters.
func VisibleShelters(list []Shelter, c FilterCriteria) []Shelter {
	out := make([]Shelter, 0, len(list))
	for _, s := range list {
		if !c.spatialMatch(s.Location()) {
			continue
		}
		if !MatchesQuery(c.Query, s.Name, s.Address) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FilterBySeverity keeps hotspots whose severity is in sevs. An empty set
// keeps everything.
func FilterBySeverity(hotspots []Hotspot, sevs []Severity) []Hotspot {
	set := severitySet(sevs)
	if len(set) == 0 {
		return hotspots
	}
	out := make([]Hotspot, 0, len(hotspots))
	for _, h := range hotspots {
		if set[h.Severity] {
			out = append(out, h)
		}
	}
	return out
}

// MatchesQuery reports whether query is a case-insensitive substring of any
// field. An empty query matches everything.
func MatchesQuery(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func severitySet(sevs []Severity) map[Severity]bool {
	if len(sevs) == 0 {
		return nil
	}
	set := make(map[Severity]bool, len(sevs))
	for _, s := range sevs {
		set[s] = true
	}
	return set
}
