package avtp

import (
	"sync"
	"time"
)

// DefaultBundleCap is the default maximum combined ACF payload size (in
// bytes) the Bundler accumulates before flushing, per spec.md §4.2.
const DefaultBundleCap = 64

// DefaultBundleWindow is the maximum time the Bundler holds blocks before
// flushing even if the cap hasn't been reached.
const DefaultBundleWindow = 5 * time.Millisecond

// Bundler accumulates ACF-CAN Brief blocks (from BuildCANBrief) for up to
// Window or until the combined payload reaches Cap bytes, then hands the
// concatenated payload to Flush. It is safe for concurrent use.
type Bundler struct {
	Cap    int
	Window time.Duration
	Flush  func(payload []byte)

	mu      sync.Mutex
	pending []byte
	timer   *time.Timer
}

// NewBundler creates a Bundler with the spec defaults.
func NewBundler(flush func(payload []byte)) *Bundler {
	return &Bundler{Cap: DefaultBundleCap, Window: DefaultBundleWindow, Flush: flush}
}

// Add appends one ACF-CAN Brief block to the current bundle, flushing
// immediately if block would push the combined payload past Cap.
func (b *Bundler) Add(block []byte) {
	b.mu.Lock()
	if len(b.pending)+len(block) > b.Cap && len(b.pending) > 0 {
		b.flushLocked()
	}
	b.pending = append(b.pending, block...)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.Window, b.onTimer)
	}
	if len(b.pending) >= b.Cap {
		b.flushLocked()
	}
	b.mu.Unlock()
}

func (b *Bundler) onTimer() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}

// flushLocked must be called with mu held.
func (b *Bundler) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return
	}
	payload := b.pending
	b.pending = nil
	if b.Flush != nil {
		b.Flush(payload)
	}
}

// FlushNow forces an immediate flush of any pending blocks.
func (b *Bundler) FlushNow() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}
