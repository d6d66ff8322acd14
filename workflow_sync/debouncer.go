package workflow_sync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer runs a function once a key has been quiet for delay. Scheduling a
// key again before it fires supersedes the earlier function.
type Debouncer struct {
	clock   clock.Clock
	delay   time.Duration
	mu      sync.Mutex
	pending map[string]*debounced
	nextGen uint64
}

type debounced struct {
	gen   uint64
	timer *clock.Timer
	fn    func()
}

func NewDebouncer(clk clock.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{
		clock:   clk,
		delay:   delay,
		pending: make(map[string]*debounced),
	}
}

func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}
	d.nextGen++
	gen := d.nextGen
	entry := &debounced{gen: gen, fn: fn}
	entry.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, gen) })
	d.pending[key] = entry
}

// fire runs the entry only if it is still the latest one for key; a stopped
// timer may already have been dispatched.
func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if !ok || entry.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	entry.fn()
}

// Flush runs every pending function now, on the calling goroutine.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	entries := make([]*debounced, 0, len(d.pending))
	for key, entry := range d.pending {
		entry.timer.Stop()
		entries = append(entries, entry)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, entry := range entries {
		entry.fn()
	}
}

func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.pending[key]; ok {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
