package domain

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// kmPerDegreeLat approximates one degree of latitude.
const kmPerDegreeLat = 111.0

// UserLocation is a WGS84 position.
type UserLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MapBounds is an axis-aligned viewport box. No antimeridian handling:
// East < West describes an empty box.
type MapBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Empty reports whether no point can fall inside the bounds.
func (b MapBounds) Empty() bool {
	return b.North < b.South || b.East < b.West
}

// RadiusOption is one of the selectable search radii in kilometres.
type RadiusOption float64

// DefaultRadius is the radius used when none is selected.
const DefaultRadius RadiusOption = 3

// RadiusOptions lists the selectable radii in ascending order.
var RadiusOptions = []RadiusOption{0.5, 1, 2, 3, 5}

// ParseRadius validates km against RadiusOptions.
func ParseRadius(km float64) (RadiusOption, error) {
	for _, r := range RadiusOptions {
		if float64(r) == km {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %v km", ErrInvalidRadius, km)
}

// Km returns the radius as a plain float.
func (r RadiusOption) Km() float64 { return float64(r) }

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the haversine great-circle distance between two points.
// The result is symmetric in its arguments and exactly 0 for identical points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	// cos(φ1)·cos(φ2) is commutative, keeping swapped arguments bit-identical.
	cosProd := math.Cos(toRadians(lat1)) * math.Cos(toRadians(lat2))
	a := sinLat*sinLat + cosProd*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// WithinRadius reports whether point lies within radiusKm of center, inclusive.
func WithinRadius(point, center UserLocation, radiusKm float64) bool {
	return DistanceKm(center.Lat, center.Lng, point.Lat, point.Lng) <= radiusKm
}

// WithinBounds reports whether (lat, lng) lies inside b, edges inclusive.
func WithinBounds(lat, lng float64, b MapBounds) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// RadiusBoundingBox returns a box that contains every point within radiusKm
// of center. It over-approximates the circle and is meant as an index-friendly
// pre-filter; exact membership still needs WithinRadius.
func RadiusBoundingBox(center UserLocation, radiusKm float64) MapBounds {
	// Pad slightly so the degree approximation never clips the circle.
	padded := radiusKm * 1.01
	latDelta := padded / kmPerDegreeLat
	b := MapBounds{
		North: math.Min(center.Lat+latDelta, 90),
		South: math.Max(center.Lat-latDelta, -90),
		East:  180,
		West:  -180,
	}
	// Near the poles a degree of longitude shrinks toward zero.
	cosLat := math.Cos(toRadians(center.Lat))
	if cosLat < 1e-6 || b.North == 90 || b.South == -90 {
		return b
	}
	lngDelta := padded / (kmPerDegreeLat * cosLat)
	if lngDelta >= 180 || center.Lng+lngDelta > 180 || center.Lng-lngDelta < -180 {
		// The circle crosses the antimeridian; a single longitude range
		// cannot hold it, so only latitude narrows the box.
		return b
	}
	b.East = center.Lng + lngDelta
	b.West = center.Lng - lngDelta
	return b
}

// Taiwan's coarse bounding box.
var taiwanBounds = MapBounds{North: 26.5, South: 21.5, East: 122.5, West: 119.5}

// IsInTaiwan reports whether the position falls inside Taiwan's bounding box.
func IsInTaiwan(lat, lng float64) bool {
	return WithinBounds(lat, lng, taiwanBounds)
}
