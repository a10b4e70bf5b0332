package cache

import "sync/atomic"

// Stats contains cache counters.
//
// For Prometheus integration, expose these as:
//   - Gauge: Items
//   - Counters: Hits, Misses, Puts, Evictions, Expired
type Stats struct {
	Hits      uint64 // Lookups that found a live entry
	Misses    uint64 // Lookups that found nothing or an expired entry
	Puts      uint64 // Entries written
	Evictions uint64 // Entries dropped under capacity pressure
	Expired   uint64 // Entries reclaimed by the purge sweep
	Items     int64  // Entries currently stored
}

// statsCollector updates Stats with atomics so snapshots never take the cache lock.
type statsCollector struct {
	stats Stats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (c *statsCollector) recordGet(hit bool) {
	if hit {
		atomic.AddUint64(&c.stats.Hits, 1)
	} else {
		atomic.AddUint64(&c.stats.Misses, 1)
	}
}

func (c *statsCollector) recordPut() {
	atomic.AddUint64(&c.stats.Puts, 1)
}

func (c *statsCollector) recordEviction() {
	atomic.AddUint64(&c.stats.Evictions, 1)
}

func (c *statsCollector) recordExpired(n int) {
	atomic.AddUint64(&c.stats.Expired, uint64(n))
}

func (c *statsCollector) setItems(n int) {
	atomic.StoreInt64(&c.stats.Items, int64(n))
}

func (c *statsCollector) snapshot() Stats {
	return Stats{
		Hits:      atomic.LoadUint64(&c.stats.Hits),
		Misses:    atomic.LoadUint64(&c.stats.Misses),
		Puts:      atomic.LoadUint64(&c.stats.Puts),
		Evictions: atomic.LoadUint64(&c.stats.Evictions),
		Expired:   atomic.LoadUint64(&c.stats.Expired),
		Items:     atomic.LoadInt64(&c.stats.Items),
	}
}
