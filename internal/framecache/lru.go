package framecache

import (
	"container/list"
	"image"
)

// lruCache is a fixed-capacity frame-index to decoded-image mapping
// with least-recently-used eviction. Recency is tracked with an
// explicit list: front is most recent, back is evicted first.
type lruCache struct {
	capacity int
	order    *list.List
	items    map[int]*list.Element
}

type lruEntry struct {
	frame int
	img   image.Image
}

func newLRUCache(capacity int) *lruCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int]*list.Element, capacity),
	}
}

// get returns the cached image and promotes it to most recently used.
func (c *lruCache) get(frame int) (image.Image, bool) {
	el, ok := c.items[frame]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).img, true
}

// add inserts an image, evicting the least recently used entry when
// the capacity would be exceeded.
func (c *lruCache) add(frame int, img image.Image) {
	if el, ok := c.items[frame]; ok {
		el.Value.(*lruEntry).img = img
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).frame)
		}
	}
	c.items[frame] = c.order.PushFront(&lruEntry{frame: frame, img: img})
}

func (c *lruCache) len() int {
	return c.order.Len()
}

func (c *lruCache) purge() {
	c.order.Init()
	clear(c.items)
}
