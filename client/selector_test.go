package client

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSelectServer(t *testing.T) {
	_, err := DefaultSelectServer("k", nil)
	require.ErrorIs(t, err, ErrNoServers)

	addr, err := DefaultSelectServer("k", []string{"a:1"})
	require.NoError(t, err)
	assert.Equal(t, "a:1", addr)
}

func TestDefaultSelectServer_Stable(t *testing.T) {
	servers := []string{"a:1", "b:1", "c:1"}

	for i := range 100 {
		key := fmt.Sprintf("key-%d", i)
		first, err := DefaultSelectServer(key, servers)
		require.NoError(t, err)
		second, err := DefaultSelectServer(key, servers)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestDefaultSelectServer_Distribution(t *testing.T) {
	servers := []string{"a:1", "b:1", "c:1", "d:1"}
	counts := map[string]int{}

	for i := range 4000 {
		addr, err := DefaultSelectServer(fmt.Sprintf("key-%d", i), servers)
		require.NoError(t, err)
		counts[addr]++
	}

	require.Len(t, counts, 4)
	for addr, n := range counts {
		assert.InDelta(t, 1000, n, 200, "server %s", addr)
	}
}

func TestDefaultSelectServer_GrowingMovesFewKeys(t *testing.T) {
	before := []string{"a:1", "b:1", "c:1"}
	after := append(before[:3:3], "d:1")

	moved := 0
	for i := range 3000 {
		key := fmt.Sprintf("key-%d", i)
		x, _ := DefaultSelectServer(key, before)
		y, _ := DefaultSelectServer(key, after)
		if x != y {
			moved++
			assert.Equal(t, "d:1", y, "keys only move to the new server")
		}
	}

	assert.InDelta(t, 750, moved, 150)
}

func TestNewStaticServers(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:1"}, NewStaticServers("a:1", "b:1").List())
}
