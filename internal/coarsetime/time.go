// Package coarsetime provides a clock refreshed every 50ms, for hot paths
// that stamp connections and can tolerate the imprecision.
package coarsetime

import (
	"sync/atomic"
	"time"
)

const tick = 50 * time.Millisecond

var now atomic.Int64

func init() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(tick)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the time of the last tick.
func Now() time.Time {
	return time.Unix(0, now.Load())
}

// Since returns the time elapsed since t, measured with the coarse clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
