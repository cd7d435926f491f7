package mapbox

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/couchcryptid/quake-energy/internal/domain"
	"github.com/couchcryptid/quake-energy/internal/observability"
)

// BaseMapper fetches a base map image for a bounding box.
type BaseMapper interface {
	BaseMap(ctx context.Context, bbox domain.BoundingBox, width, height int) (image.Image, error)
}

// CachedBaseMap wraps a BaseMapper with an in-memory LRU cache. All charts
// of one run share the same extent, so the tile is downloaded once.
type CachedBaseMap struct {
	inner   BaseMapper
	cache   *lruCache[image.Image]
	metrics *observability.Metrics
}

// NewCachedBaseMap creates a cache decorator around a base map source.
func NewCachedBaseMap(inner BaseMapper, maxEntries int, metrics *observability.Metrics) *CachedBaseMap {
	return &CachedBaseMap{
		inner:   inner,
		cache:   newLRUCache[image.Image](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedBaseMap) BaseMap(ctx context.Context, bbox domain.BoundingBox, width, height int) (image.Image, error) {
	key := fmt.Sprintf("static:%s|%dx%d", bbox, width, height)
	if img, ok := c.cache.get(key); ok {
		c.metrics.MapboxCache.WithLabelValues("static", "hit").Inc()
		return img, nil
	}
	c.metrics.MapboxCache.WithLabelValues("static", "miss").Inc()

	img, err := c.inner.BaseMap(ctx, bbox, width, height)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, img)
	return img, nil
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache[domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache[domain.GeocodingResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.MapboxCache.WithLabelValues("reverse", "hit").Inc()
		return result, nil
	}
	c.metrics.MapboxCache.WithLabelValues("reverse", "miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
