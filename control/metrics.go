// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters for system-level monitoring.
// Counters are created on first use and updated atomically.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds named monotonic counters.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	updated  atomic.Int64 // unix nanos of last update
}

// NewMetrics creates an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]*atomic.Int64),
	}
}

// Add increments counter key by delta.
func (m *Metrics) Add(key string, delta int64) {
	m.counter(key).Add(delta)
	m.updated.Store(time.Now().UnixNano())
}

// Inc increments counter key by one.
func (m *Metrics) Inc(key string) {
	m.Add(key, 1)
}

// Get returns the current value of key.
func (m *Metrics) Get(key string) int64 {
	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return c.Load()
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.counters))
	for k, c := range m.counters {
		out[k] = c.Load()
	}
	return out
}

// Updated returns the time of the last counter change.
func (m *Metrics) Updated() time.Time {
	ns := m.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (m *Metrics) counter(key string) *atomic.Int64 {
	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[key]; !ok {
		c = new(atomic.Int64)
		m.counters[key] = c
	}
	return c
}
