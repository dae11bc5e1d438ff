package thumbs

import (
	"container/list"
	"image"
	"sync"

	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
)

// DefaultCacheCapacity is the default display cache entry limit.
const DefaultCacheCapacity = 300

// DisplayCache is a fixed-capacity LRU of decoded display images keyed by
// entry id. It is separate from the persisted blobs: evicting here never
// touches the store. Estimated footprint assumes 4 bytes per pixel.
type DisplayCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[int64]*list.Element
	bytes    int64
	hits     uint64
	misses   uint64
}

type cacheItem struct {
	id   int64
	img  image.Image
	size int64
}

// NewDisplayCache creates a cache holding at most capacity images.
func NewDisplayCache(capacity int) *DisplayCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	return &DisplayCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int64]*list.Element),
	}
}

// Get returns the cached image for id, marking it most recently used.
func (c *DisplayCache) Get(id int64) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	metrics.CacheHits.Inc()
	return el.Value.(*cacheItem).img, true
}

// Put stores img under id, evicting the least recently used entry when
// capacity is exceeded.
func (c *DisplayCache) Put(id int64, img image.Image) {
	size := estimateBytes(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		item := el.Value.(*cacheItem)
		c.bytes += size - item.size
		item.img = img
		item.size = size
		c.order.MoveToFront(el)
		metrics.CacheBytes.Set(float64(c.bytes))
		return
	}

	c.items[id] = c.order.PushFront(&cacheItem{id: id, img: img, size: size})
	c.bytes += size

	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
	metrics.CacheBytes.Set(float64(c.bytes))
}

// evictOldest removes the back element. Caller holds the lock.
func (c *DisplayCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	item := el.Value.(*cacheItem)
	c.order.Remove(el)
	delete(c.items, item.id)
	c.bytes -= item.size
	metrics.CacheEvictions.Inc()
}

// Shrink evicts least-recently-used entries until the estimated footprint
// is at or below targetBytes. Shrink(0) empties the cache. Returns the
// number of entries evicted.
func (c *DisplayCache) Shrink(targetBytes int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for c.bytes > targetBytes && c.order.Len() > 0 {
		c.evictOldest()
		evicted++
	}
	metrics.CacheBytes.Set(float64(c.bytes))

	if evicted > 0 {
		logging.Info("Display cache shrunk: evicted %d entries, %d bytes held", evicted, c.bytes)
	}
	return evicted
}

// Len returns the number of cached images.
func (c *DisplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// EstimatedBytes returns the estimated memory footprint.
func (c *DisplayCache) EstimatedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Counters returns the hit and miss counts.
func (c *DisplayCache) Counters() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func estimateBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
