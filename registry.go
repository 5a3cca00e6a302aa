package sdrig

import (
	"time"

	"github.com/sdrig/sdrig-go/pkg/discovery"
)

// registryWatchdogTask is the scheduler task name for the liveness sweep
// below, registered by New on the same scheduler that runs the device
// keepalives.
const registryWatchdogTask = "registry-watchdog"

// SetStaleDeviceCallback registers fn, which is invoked from the scheduler
// goroutine whenever a previously-alive registry entry's last_seen falls
// further than discovery.AliveThreshold behind now — the Go equivalent of
// the Python SDK's sdrig/core/watchdog.py (SPEC_FULL.md §4.11), built on
// top of the scheduler (C5) rather than a dedicated thread.
func (c *Client) SetStaleDeviceCallback(fn func(mac [6]byte, entry discovery.Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStale = fn
}

func (c *Client) watchdogTick() error {
	now := time.Now()
	for _, mac := range c.registry.MACs() {
		entry, ok := c.registry.Get(mac)
		if !ok {
			continue
		}
		wasAlive := c.staleSeen[mac]
		alive := entry.IsAlive(now)
		if wasAlive && !alive {
			c.mu.Lock()
			cb := c.onStale
			c.mu.Unlock()
			if cb != nil {
				cb(mac, entry)
			}
		}
		c.staleSeen[mac] = alive
	}
	return nil
}

// Registry exposes the underlying discovery registry for read access
// (Get/MACs), for callers who want more than the watchdog callback.
func (c *Client) Registry() *discovery.Registry { return c.registry }
