// Package rediscache shares reverse-geocoding results between service
// instances through Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revgeo:"

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Geocoder caches another Geocoder's results in Redis. Redis failures are
// logged and bypassed; they never fail a lookup.
type Geocoder struct {
	inner   domain.Geocoder
	client  Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGeocoder wraps inner with a Redis-backed cache.
func NewGeocoder(inner domain.Geocoder, client Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Geocoder {
	return &Geocoder{inner: inner, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// Key returns the cache key for a coordinate pair. Four decimal places is
// roughly 11 m, well inside one street address.
func Key(lat, lng float64) string {
	return fmt.Sprintf("%s%.4f:%.4f", keyPrefix, lat, lng)
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.AddressInfo, error) {
	key := Key(lat, lng)

	s, err := g.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var info domain.AddressInfo
		if jerr := json.Unmarshal([]byte(s), &info); jerr == nil && info.Formatted != "" {
			g.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
			return info, nil
		}
		g.logger.Warn("discarding malformed geocode cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		g.logger.Warn("redis geocode cache read failed", "key", key, "error", err)
	}
	g.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	info, err := g.inner.ReverseGeocode(ctx, lat, lng)
	if err != nil || info.Formatted == "" {
		return info, err
	}

	b, err := json.Marshal(info)
	if err != nil {
		return info, nil
	}
	if err := g.client.Set(ctx, key, string(b), g.ttl).Err(); err != nil {
		g.logger.Warn("redis geocode cache write failed", "key", key, "error", err)
	}
	return info, nil
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rc, nil
}
