package memcached

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// VersionGenerator issues CAS tokens. Every call to Next must return a token
// never returned before by the same generator.
type VersionGenerator interface {
	Next() string
}

// CounterVersions issues decimal tokens from a monotonic counter.
type CounterVersions struct {
	n atomic.Uint64
}

func (v *CounterVersions) Next() string {
	return strconv.FormatUint(v.n.Add(1), 10)
}

// UUIDVersions issues random UUIDv4 tokens.
type UUIDVersions struct{}

func (UUIDVersions) Next() string {
	return uuid.NewString()
}

// Version generator names accepted by NewVersionGenerator.
const (
	VersionsCounter = "counter"
	VersionsUUID    = "uuid"
)

// NewVersionGenerator returns the generator registered under name.
func NewVersionGenerator(name string) (VersionGenerator, error) {
	switch name {
	case "", VersionsCounter:
		return &CounterVersions{}, nil
	case VersionsUUID:
		return UUIDVersions{}, nil
	default:
		return nil, fmt.Errorf("unknown cas token generator %q", name)
	}
}
