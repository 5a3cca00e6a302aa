// Package metrics collects the drop/error counters spec.md §4.2 and §4.6
// require (rx_drops_length, rx_drops_other, decode_drops[pgn]) behind one
// small counter map, the Go equivalent of the Python SDK's
// sdrig/core/metrics.py (SPEC_FULL.md §4.11). There is no metrics exporter
// anywhere in the retrieved corpus to ground an exporter-backed
// implementation on, so this is a plain in-memory counter set exposed
// read-only, not a Prometheus registry.
package metrics

import "sync"

// Counters is a thread-safe named-counter map.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
}

// New returns an empty Counters set.
func New() *Counters {
	return &Counters{values: map[string]uint64{}}
}

// Inc increments the named counter by one.
func (c *Counters) Inc(name string) {
	c.Add(name, 1)
}

// Add increments the named counter by delta.
func (c *Counters) Add(name string, delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] += delta
}

// Get returns the named counter's current value.
func (c *Counters) Get(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

// Snapshot returns a copy of every counter currently tracked.
func (c *Counters) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
