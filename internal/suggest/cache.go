// Package suggest caches generated suggestions by conversational context.
//
// A [Cache] maps a composite context key (see [MakeKey]) to the suggestion
// text produced for that context. Entries expire after a fixed TTL and the
// cache holds a bounded number of keys, evicting the oldest insertion first.
//
// Neither [Cache] nor [History] is safe for concurrent use. Both are owned by
// a single session event loop.
package suggest

import (
	"container/list"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long an entry remains valid after insertion.
	DefaultTTL = 45 * time.Second

	// DefaultCapacity bounds the number of keys held.
	DefaultCapacity = 75
)

// Band is the energy band component of a cache key.
type Band string

const (
	BandNormal    Band = "normal"
	BandExhausted Band = "exhausted"
)

// Entry is one cached suggestion.
type Entry struct {
	Text       string
	InsertedAt time.Time
}

// MakeKey builds the composite cache key
// "<intent>_<recent>_<persona>_<band>", where recent is joined with "_" and
// may be empty.
func MakeKey(intent string, recent []string, persona string, band Band) string {
	var b strings.Builder
	b.WriteString(intent)
	b.WriteByte('_')
	b.WriteString(strings.Join(recent, "_"))
	b.WriteByte('_')
	b.WriteString(persona)
	b.WriteByte('_')
	b.WriteString(string(band))
	return b.String()
}

type item struct {
	key   string
	entry Entry
}

// Cache is a TTL cache with insertion-ordered eviction.
type Cache struct {
	ttl      time.Duration
	capacity int

	order *list.List
	index map[string]*list.Element
}

// New returns an empty Cache. Non-positive arguments select the defaults.
func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the entry for key if it was inserted less than TTL before now.
// Expired entries are removed and reported as a miss.
func (c *Cache) Get(key string, now time.Time) (Entry, bool) {
	el, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	it := el.Value.(*item)
	if now.Sub(it.entry.InsertedAt) >= c.ttl {
		c.remove(el)
		return Entry{}, false
	}
	return it.entry, true
}

// Put stores text under key. Overwriting an existing key refreshes its text
// and TTL but keeps its original place in the eviction order. When the cache
// grows past its capacity the oldest insertion is evicted and its key
// returned.
func (c *Cache) Put(key, text string, now time.Time) (evicted string, ok bool) {
	if el, found := c.index[key]; found {
		el.Value.(*item).entry = Entry{Text: text, InsertedAt: now}
		return "", false
	}
	c.index[key] = c.order.PushBack(&item{key: key, entry: Entry{Text: text, InsertedAt: now}})
	if c.order.Len() > c.capacity {
		front := c.order.Front()
		evicted, ok = front.Value.(*item).key, true
		c.remove(front)
	}
	return evicted, ok
}

// Len returns the number of stored keys, including not-yet-collected
// expired ones.
func (c *Cache) Len() int { return c.order.Len() }

// Clear drops every entry.
func (c *Cache) Clear() {
	c.order.Init()
	clear(c.index)
}

func (c *Cache) remove(el *list.Element) {
	delete(c.index, el.Value.(*item).key)
	c.order.Remove(el)
}
