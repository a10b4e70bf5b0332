package client

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
//
// Gauges: TotalConns, IdleConns, ActiveConns.
// Counters: everything else.
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// ClientStats contains statistics about client operations.
type ClientStats struct {
	Gets            uint64 // Keys requested by Get, Gets and GetMulti
	GetHits         uint64 // Requested keys that were found
	Sets            uint64
	Adds            uint64
	Replaces        uint64
	Appends         uint64
	Prepends        uint64
	CompareAndSwaps uint64
	Errors          uint64 // Failed operations, outcome sentinels excluded
}

type poolStatsCollector struct {
	stats PoolStats
}

func (c *poolStatsCollector) recordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *poolStatsCollector) recordAcquireWait(duration time.Duration) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(duration.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	atomic.AddUint64(&c.stats.CreatedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, 1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

// recordDestroy is called for a connection that was checked out, or idle when idle is true.
func (c *poolStatsCollector) recordDestroy(idle bool) {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	if idle {
		atomic.AddInt32(&c.stats.IdleConns, -1)
	} else {
		atomic.AddInt32(&c.stats.ActiveConns, -1)
	}
}

func (c *poolStatsCollector) recordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	atomic.AddInt32(&c.stats.IdleConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordRelease() {
	atomic.AddInt32(&c.stats.IdleConns, 1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		TotalConns:        atomic.LoadInt32(&c.stats.TotalConns),
		IdleConns:         atomic.LoadInt32(&c.stats.IdleConns),
		ActiveConns:       atomic.LoadInt32(&c.stats.ActiveConns),
		AcquireCount:      atomic.LoadUint64(&c.stats.AcquireCount),
		AcquireWaitCount:  atomic.LoadUint64(&c.stats.AcquireWaitCount),
		CreatedConns:      atomic.LoadUint64(&c.stats.CreatedConns),
		DestroyedConns:    atomic.LoadUint64(&c.stats.DestroyedConns),
		AcquireErrors:     atomic.LoadUint64(&c.stats.AcquireErrors),
		AcquireWaitTimeNs: atomic.LoadUint64(&c.stats.AcquireWaitTimeNs),
	}
}

type clientStatsCollector struct {
	stats ClientStats
}

func (c *clientStatsCollector) recordGets(requested, found int) {
	atomic.AddUint64(&c.stats.Gets, uint64(requested))
	atomic.AddUint64(&c.stats.GetHits, uint64(found))
}

func (c *clientStatsCollector) recordStore(counter *uint64) {
	atomic.AddUint64(counter, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Gets:            atomic.LoadUint64(&c.stats.Gets),
		GetHits:         atomic.LoadUint64(&c.stats.GetHits),
		Sets:            atomic.LoadUint64(&c.stats.Sets),
		Adds:            atomic.LoadUint64(&c.stats.Adds),
		Replaces:        atomic.LoadUint64(&c.stats.Replaces),
		Appends:         atomic.LoadUint64(&c.stats.Appends),
		Prepends:        atomic.LoadUint64(&c.stats.Prepends),
		CompareAndSwaps: atomic.LoadUint64(&c.stats.CompareAndSwaps),
		Errors:          atomic.LoadUint64(&c.stats.Errors),
	}
}
