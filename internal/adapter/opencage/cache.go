package opencage

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
)

// cellScale sets the cache resolution to 1e-4 degrees, about 11 m and the
// same precision as the Redis key and the fallback address.
const cellScale = 1e4

// cell identifies a rounded coordinate. Clicks that land in the same cell
// share one geocode result.
type cell struct {
	lat, lng int32
}

func cellOf(lat, lng float64) cell {
	return cell{
		lat: int32(math.Round(lat * cellScale)),
		lng: int32(math.Round(lng * cellScale)),
	}
}

// CachedGeocoder keeps the most recently resolved addresses in memory, in
// front of the Redis cache and the OpenCage client.
type CachedGeocoder struct {
	inner   domain.Geocoder
	metrics *observability.Metrics

	mu    sync.Mutex
	limit int
	order *list.List // of *addressEntry, most recent at the front
	cells map[cell]*list.Element
}

type addressEntry struct {
	at   cell
	info domain.AddressInfo
}

// NewCachedGeocoder wraps inner with an address cache of at most limit cells.
func NewCachedGeocoder(inner domain.Geocoder, limit int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		metrics: metrics,
		limit:   max(limit, 1),
		order:   list.New(),
		cells:   make(map[cell]*list.Element),
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.AddressInfo, error) {
	at := cellOf(lat, lng)
	if info, ok := c.lookup(at); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return info, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	info, err := c.inner.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return info, err
	}
	// Empty and fallback results stay uncached so a later lookup can succeed.
	if info.Formatted != "" && !info.Fallback {
		c.store(at, info)
	}
	return info, nil
}

// Len reports the number of cached cells.
func (c *CachedGeocoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedGeocoder) lookup(at cell) (domain.AddressInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.cells[at]
	if !ok {
		return domain.AddressInfo{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*addressEntry).info, true
}

func (c *CachedGeocoder) store(at cell, info domain.AddressInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.cells[at]; ok {
		el.Value.(*addressEntry).info = info
		c.order.MoveToFront(el)
		return
	}
	c.cells[at] = c.order.PushFront(&addressEntry{at: at, info: info})

	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.cells, oldest.Value.(*addressEntry).at)
	}
}
