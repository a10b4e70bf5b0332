package client

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the requests sent to one server.
type CircuitBreaker interface {
	Execute(req func() (*Response, error)) (*Response, error)
	State() gobreaker.State
}

// NewCircuitBreakerConfig returns a Config.NewCircuitBreaker function.
// A breaker trips once it has seen at least 3 requests with 60% failures.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			// Replies such as NOT_STORED are outcomes, not server failures.
			IsSuccessful: func(err error) bool {
				return !ShouldCloseConnection(err)
			},
		}
		return gobreaker.NewCircuitBreaker[*Response](settings)
	}
}
