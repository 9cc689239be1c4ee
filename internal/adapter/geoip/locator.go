// Package geoip resolves client IP addresses to approximate positions using a
// MaxMind GeoIP2 or GeoLite2 City database.
package geoip

import (
	"context"
	"fmt"
	"net"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/oschwald/geoip2-golang"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator implements domain.UserLocator with keys that are IP addresses.
type Locator struct {
	db cityReader
}

// Open loads the database at path.
func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Locator{db: db}, nil
}

// Locate looks up ip. Private, malformed and unknown addresses produce a
// *domain.LocationError.
func (l *Locator) Locate(_ context.Context, ip string) (domain.UserLocation, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return domain.UserLocation{}, &domain.LocationError{Reason: fmt.Sprintf("invalid address %q", ip)}
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		return domain.UserLocation{}, &domain.LocationError{Reason: "address is not publicly routable"}
	}

	rec, err := l.db.City(addr)
	if err != nil {
		return domain.UserLocation{}, &domain.LocationError{Reason: "lookup failed", Err: err}
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return domain.UserLocation{}, &domain.LocationError{Reason: "address has no known position"}
	}
	return domain.UserLocation{Lat: rec.Location.Latitude, Lng: rec.Location.Longitude}, nil
}

func (l *Locator) Close() error {
	return l.db.Close()
}
