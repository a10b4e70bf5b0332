package memcached

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionGenerator(t *testing.T) {
	for _, name := range []string{"", VersionsCounter, VersionsUUID} {
		gen, err := NewVersionGenerator(name)
		require.NoError(t, err, name)
		assert.NotEqual(t, gen.Next(), gen.Next(), name)
	}

	_, err := NewVersionGenerator("random")
	assert.EqualError(t, err, `unknown cas token generator "random"`)
}

func TestCounterVersions(t *testing.T) {
	var v CounterVersions
	assert.Equal(t, "1", v.Next())
	assert.Equal(t, "2", v.Next())
}

func TestVersions_UniqueUnderConcurrency(t *testing.T) {
	gens := map[string]VersionGenerator{
		"counter": &CounterVersions{},
		"uuid":    UUIDVersions{},
	}

	for name, gen := range gens {
		t.Run(name, func(t *testing.T) {
			var (
				mu   sync.Mutex
				seen = make(map[string]struct{})
				wg   sync.WaitGroup
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 250 {
						token := gen.Next()
						mu.Lock()
						seen[token] = struct{}{}
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Len(t, seen, 2000)
		})
	}
}
