package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/memcached/client"
)

// scenario prepares shared state, then runs one iteration per call of op.
// op returns the number of requests it issued and an error on failure;
// errMismatch marks a wrong value, which fails the correctness check.
type scenario struct {
	setup func(ctx context.Context, c *client.Client) error
	op    func(ctx context.Context, c *client.Client, worker, iteration int) (int, error)
}

var errMismatch = errors.New("value mismatch")

var scenarioNames = []string{"cache-hit", "dynamic-value", "cache-miss", "append", "cas-contention"}

var scenarios = map[string]scenario{
	// one set, then gets of the same key
	"cache-hit": {
		setup: func(ctx context.Context, c *client.Client) error {
			return c.Set(ctx, client.Item{Key: "cache-hit-key", Value: []byte("cache-hit-value"), TTL: time.Hour})
		},
		op: func(ctx context.Context, c *client.Client, _, _ int) (int, error) {
			item, err := c.Get(ctx, "cache-hit-key")
			if err != nil {
				return 1, err
			}
			if string(item.Value) != "cache-hit-value" {
				return 1, errMismatch
			}
			return 1, nil
		},
	},

	// set a fresh key then read it back
	"dynamic-value": {
		op: func(ctx context.Context, c *client.Client, worker, iteration int) (int, error) {
			key := fmt.Sprintf("dynamic-%d-%d", worker, iteration)
			value := []byte("value-" + key)
			if err := c.Set(ctx, client.Item{Key: key, Value: value, TTL: time.Hour}); err != nil {
				return 1, err
			}
			item, err := c.Get(ctx, key)
			if err != nil {
				return 2, err
			}
			if !bytes.Equal(item.Value, value) {
				return 2, errMismatch
			}
			return 2, nil
		},
	},

	// gets of keys that were never stored
	"cache-miss": {
		op: func(ctx context.Context, c *client.Client, worker, iteration int) (int, error) {
			_, err := c.Get(ctx, fmt.Sprintf("missing-%d-%d", worker, iteration))
			if errors.Is(err, client.ErrCacheMiss) {
				return 1, nil
			}
			if err != nil {
				return 1, err
			}
			return 1, errMismatch
		},
	},

	// every worker appends one byte to its own key, the length must track
	"append": {
		op: func(ctx context.Context, c *client.Client, worker, iteration int) (int, error) {
			key := "append-" + strconv.Itoa(worker)
			if iteration == 0 {
				if err := c.Set(ctx, client.Item{Key: key, TTL: time.Hour}); err != nil {
					return 1, err
				}
			}
			if err := c.Append(ctx, key, []byte("x")); err != nil {
				return 1, err
			}
			item, err := c.Get(ctx, key)
			if err != nil {
				return 2, err
			}
			if len(item.Value) != iteration+1 {
				return 2, errMismatch
			}
			return 2, nil
		},
	},

	// all workers increment one counter with gets/cas retries; no update is lost
	"cas-contention": {
		setup: func(ctx context.Context, c *client.Client) error {
			return c.Set(ctx, client.Item{Key: "cas-counter", Value: []byte("0"), TTL: time.Hour})
		},
		op: func(ctx context.Context, c *client.Client, _, _ int) (int, error) {
			requests := 0
			for {
				item, err := c.Gets(ctx, "cas-counter")
				requests++
				if err != nil {
					return requests, err
				}
				n, err := strconv.Atoi(string(item.Value))
				if err != nil {
					return requests, errMismatch
				}
				item.Value = []byte(strconv.Itoa(n + 1))

				err = c.CompareAndSwap(ctx, item)
				requests++
				if errors.Is(err, client.ErrCASConflict) {
					continue
				}
				return requests, err
			}
		},
	},
}

type result struct {
	Scenario    string
	Duration    time.Duration
	Iterations  int64
	Requests    int64
	Failures    int64
	Mismatches  int64
	SetupError  error
	AvgLatency  time.Duration
	RequestRate float64
}

// run executes s with concurrency workers until duration elapses or ctx is done.
func run(ctx context.Context, c *client.Client, name string, s scenario, duration time.Duration, concurrency int) *result {
	res := &result{Scenario: name}

	if s.setup != nil {
		if err := s.setup(ctx, c); err != nil {
			res.SetupError = err
			return res
		}
	}

	var (
		iterations, requests, failures, mismatches atomic.Int64
		totalLatency                               atomic.Int64
		wg                                         sync.WaitGroup
	)

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	deadline, _ := ctx.Deadline()

	// Connections carry the same deadline, and it can fire before ctx.Err
	// reports it.
	interrupted := func(err error) bool {
		return ctx.Err() != nil || !time.Now().Before(deadline) ||
			errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
	}

	start := time.Now()
	for worker := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; !interrupted(nil); i++ {
				opStart := time.Now()
				n, err := s.op(ctx, c, worker, i)
				if interrupted(err) {
					return // interrupted by the deadline, not a failure
				}
				totalLatency.Add(int64(time.Since(opStart)))
				iterations.Add(1)
				requests.Add(int64(n))

				switch {
				case errors.Is(err, errMismatch):
					mismatches.Add(1)
				case err != nil:
					failures.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	res.Duration = time.Since(start)
	res.Iterations = iterations.Load()
	res.Requests = requests.Load()
	res.Failures = failures.Load()
	res.Mismatches = mismatches.Load()
	if res.Iterations > 0 {
		res.AvgLatency = time.Duration(totalLatency.Load() / res.Iterations)
		res.RequestRate = float64(res.Requests) / res.Duration.Seconds()
	}
	return res
}

func (r *result) print(w io.Writer) {
	if r.SetupError != nil {
		fmt.Fprintf(w, "Setup failed: %v\n\n", r.SetupError)
		return
	}
	fmt.Fprintf(w, "Duration: %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations: %d (avg %v)\n", r.Iterations, r.AvgLatency)
	fmt.Fprintf(w, "Requests: %d (%.0f/s)\n", r.Requests, r.RequestRate)
	fmt.Fprintf(w, "Failures: %d\n", r.Failures)
	fmt.Fprintf(w, "Correctness: %t\n\n", r.Mismatches == 0)
}
