package client

import (
	"errors"

	"github.com/pior/memcached/internal/jumphash"
	"github.com/zeebo/xxh3"
)

var ErrNoServers = errors.New("memcache: no servers available")

// Servers provides the current list of server addresses.
type Servers interface {
	List() []string
}

type staticServers []string

// NewStaticServers returns a fixed server list.
func NewStaticServers(addrs ...string) Servers {
	return staticServers(addrs)
}

func (s staticServers) List() []string {
	return s
}

// SelectServerFunc picks the server for key among servers.
type SelectServerFunc func(key string, servers []string) (string, error)

// DefaultSelectServer hashes the key with xxh3 and maps it with jump
// consistent hashing, so growing the list moves few keys.
func DefaultSelectServer(key string, servers []string) (string, error) {
	switch len(servers) {
	case 0:
		return "", ErrNoServers
	case 1:
		return servers[0], nil
	}

	idx := jumphash.Hash(xxh3.HashString(key), len(servers))
	return servers[idx], nil
}
