package jumphash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Bounds(t *testing.T) {
	assert.Equal(t, 0, Hash(42, 0))
	assert.Equal(t, 0, Hash(42, 1))

	for key := range uint64(1000) {
		b := Hash(key, 7)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 7)
	}
}

func TestHash_MinimalMovement(t *testing.T) {
	moved := 0
	for key := range uint64(10000) {
		if Hash(key, 10) != Hash(key, 11) {
			moved++
		}
	}

	// growing from 10 to 11 buckets should move about 1/11 of the keys
	assert.InDelta(t, 10000/11, moved, 300)
}
