package monitoring

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counters is an in-memory set of tagged counters, safe for concurrent use.
type Counters struct {
	mu       sync.RWMutex
	counters map[string]*int64
}

func NewCounters() *Counters {
	return &Counters{counters: make(map[string]*int64)}
}

// Increment adds one to the counter identified by name and tags.
func (c *Counters) Increment(name string, tags map[string]string) {
	key := keyWithTags(name, tags)

	c.mu.RLock()
	counter, ok := c.counters[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if counter, ok = c.counters[key]; !ok {
			counter = new(int64)
			c.counters[key] = counter
		}
		c.mu.Unlock()
	}
	atomic.AddInt64(counter, 1)
}

// Get returns the current value of a counter, zero if it was never
// incremented.
func (c *Counters) Get(name string, tags map[string]string) int64 {
	c.mu.RLock()
	counter, ok := c.counters[keyWithTags(name, tags)]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// Snapshot copies every counter, keyed as "name,tag=value,...".
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.counters))
	for key, counter := range c.counters {
		out[key] = atomic.LoadInt64(counter)
	}
	return out
}

func keyWithTags(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}

	// Sort tags for consistent key generation
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("," + k + "=" + tags[k])
	}
	return b.String()
}
