package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/memcached"
	"github.com/pior/memcached/cache"
	"github.com/pior/memcached/internal/testutils"
)

// startServer runs an in-process server on a random port.
func startServer(t *testing.T) string {
	t.Helper()

	c := cache.New(cache.Config{Capacity: 100, PurgeInterval: -1})
	t.Cleanup(func() { _ = c.Close() })

	srv := memcached.NewServer(memcached.NewProcessor(c, memcached.ProcessorConfig{}), memcached.ServerConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return ln.Addr().String()
}

func newTestClient(t *testing.T, config Config, addrs ...string) *Client {
	t.Helper()

	if config.MaxSize == 0 {
		config.MaxSize = 2
	}
	client, err := NewClient(NewStaticServers(addrs...), config)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

// newMockClient returns a client whose single connection replays replies.
func newMockClient(t *testing.T, replies ...string) (*Client, *testutils.ConnectionMock) {
	t.Helper()

	mock := testutils.NewConnectionMock(replies...)
	client := newTestClient(t, Config{
		MaxSize: 1,
		constructor: func(ctx context.Context) (*Connection, error) {
			return NewConnection(mock), nil
		},
	}, "mock:11211")
	return client, mock
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient(NewStaticServers(), Config{MaxSize: 1})
	require.ErrorIs(t, err, ErrNoServers)

	_, err = NewClient(NewStaticServers("a:1"), Config{})
	require.Error(t, err)
}

func TestClient_SetWire(t *testing.T) {
	client, mock := newMockClient(t, "STORED\r\n")

	err := client.Set(context.Background(), Item{Key: "k", Value: []byte("hello"), Flags: 2, TTL: 1500 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "set k 2 2 5\r\nhello\r\n", mock.GetWrittenRequest())
}

func TestClient_UnexpectedStatus(t *testing.T) {
	client, _ := newMockClient(t, "END\r\n")

	err := client.Set(context.Background(), Item{Key: "k", Value: []byte("v")})
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, uint64(1), client.Stats().Errors)
}

func TestClient_ServerErrorKeepsConnection(t *testing.T) {
	client, mock := newMockClient(t, "SERVER_ERROR busy\r\n", "STORED\r\n")
	ctx := context.Background()

	err := client.Set(ctx, Item{Key: "k", Value: []byte("v")})
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.False(t, mock.Closed())

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))
}

func TestClient_ClientErrorClosesConnection(t *testing.T) {
	client, mock := newMockClient(t, "CLIENT_ERROR bad data chunk\r\n")

	err := client.Set(context.Background(), Item{Key: "k", Value: []byte("v")})
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.True(t, mock.Closed())
}

func TestClient_InvalidKeyNeverDials(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, Config{constructor: dialer.constructor}, "mock:11211")

	err := client.Set(context.Background(), Item{Key: "has space", Value: []byte("v")})
	var keyErr *InvalidKeyError
	require.ErrorAs(t, err, &keyErr)

	_, err = client.Get(context.Background(), "")
	require.ErrorAs(t, err, &keyErr)

	assert.Equal(t, int32(0), dialer.dials.Load())
}

func TestClient_CompareAndSwapRequiresToken(t *testing.T) {
	client, mock := newMockClient(t)

	err := client.CompareAndSwap(context.Background(), Item{Key: "k", Value: []byte("v")})
	require.Error(t, err)
	assert.Empty(t, mock.GetWrittenRequest())
}

func TestClient_Integration(t *testing.T) {
	client := newTestClient(t, Config{}, startServer(t))
	ctx := context.Background()

	_, err := client.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("hello"), Flags: 4.5}))

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Item{Key: "k", Value: []byte("hello"), Flags: 4.5}, item)

	require.ErrorIs(t, client.Add(ctx, Item{Key: "k", Value: []byte("x")}), ErrNotStored)
	require.NoError(t, client.Add(ctx, Item{Key: "fresh", Value: []byte("x")}))

	require.ErrorIs(t, client.Replace(ctx, Item{Key: "missing", Value: []byte("x")}), ErrNotStored)
	require.NoError(t, client.Replace(ctx, Item{Key: "fresh", Value: []byte("y")}))

	require.NoError(t, client.Append(ctx, "k", []byte(" world")))
	require.NoError(t, client.Prepend(ctx, "k", []byte(">> ")))
	require.ErrorIs(t, client.Append(ctx, "missing", []byte("x")), ErrNotFound)
	require.ErrorIs(t, client.Prepend(ctx, "missing", []byte("x")), ErrNotFound)

	item, err = client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, ">> hello world", string(item.Value))
	assert.Equal(t, 4.5, item.Flags, "append and prepend keep flags")
}

func TestClient_IntegrationCompareAndSwap(t *testing.T) {
	client := newTestClient(t, Config{}, startServer(t))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v1")}))

	item, err := client.Gets(ctx, "k")
	require.NoError(t, err)
	require.NotEmpty(t, item.CAS)

	stale := item
	item.Value = []byte("v2")
	require.NoError(t, client.CompareAndSwap(ctx, item))

	stale.Value = []byte("v3")
	require.ErrorIs(t, client.CompareAndSwap(ctx, stale), ErrCASConflict)

	stale.Key = "missing"
	require.ErrorIs(t, client.CompareAndSwap(ctx, stale), ErrNotFound)

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got.Value))
	assert.Empty(t, got.CAS, "get does not return tokens")
}

func TestClient_IntegrationNoReply(t *testing.T) {
	client := newTestClient(t, Config{MaxSize: 1}, startServer(t))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v"), NoReply: true}))
	require.NoError(t, client.Add(ctx, Item{Key: "k", Value: []byte("ignored"), NoReply: true}))

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(item.Value))
}

func TestClient_IntegrationGetMulti(t *testing.T) {
	client := newTestClient(t, Config{}, startServer(t), startServer(t))
	ctx := context.Background()

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, key := range keys[:6] {
		require.NoError(t, client.Set(ctx, Item{Key: key, Value: []byte("value-" + key)}))
	}

	items, err := client.GetMulti(ctx, keys)
	require.NoError(t, err)

	require.Len(t, items, 6)
	for _, key := range keys[:6] {
		assert.Equal(t, "value-"+key, string(items[key].Value))
	}
	assert.NotContains(t, items, "g")

	assert.NotEmpty(t, client.AllPoolStats())

	stats := client.Stats()
	assert.Equal(t, uint64(6), stats.Sets)
	assert.Equal(t, uint64(8), stats.Gets)
	assert.Equal(t, uint64(6), stats.GetHits)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	dialer := &mockDialer{err: errors.New("connection refused")}
	client := newTestClient(t, Config{
		constructor:       dialer.constructor,
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}, "down:11211")
	ctx := context.Background()

	for range 3 {
		err := client.Set(ctx, Item{Key: "k", Value: []byte("v")})
		require.ErrorContains(t, err, "connection refused")
	}

	err := client.Set(ctx, Item{Key: "k", Value: []byte("v")})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	stats := client.AllPoolStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "open", stats[0].CircuitBreakerState)
}

func TestClient_CircuitBreakerIgnoresOutcomes(t *testing.T) {
	client := newTestClient(t, Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}, startServer(t))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))
	for range 5 {
		require.ErrorIs(t, client.Add(ctx, Item{Key: "k", Value: []byte("v")}), ErrNotStored)
	}

	assert.Equal(t, "closed", client.AllPoolStats()[0].CircuitBreakerState)
}

func TestClient_HealthCheckDestroysOldConnections(t *testing.T) {
	client := newTestClient(t, Config{
		MaxSize:             1,
		HealthCheckInterval: 10 * time.Millisecond,
		MaxConnLifetime:     time.Nanosecond,
	}, startServer(t))

	require.NoError(t, client.Set(context.Background(), Item{Key: "k", Value: []byte("v")}))

	assert.Eventually(t, func() bool {
		stats := client.AllPoolStats()
		return len(stats) == 1 && stats[0].PoolStats.DestroyedConns >= 1
	}, time.Second, 5*time.Millisecond)

	_, err := client.Get(context.Background(), "k")
	require.NoError(t, err)
}

func TestClient_HealthCheckKeepsHealthyConnections(t *testing.T) {
	client := newTestClient(t, Config{
		MaxSize:             1,
		HealthCheckInterval: 5 * time.Millisecond,
	}, startServer(t))

	require.NoError(t, client.Set(context.Background(), Item{Key: "k", Value: []byte("v")}))
	time.Sleep(30 * time.Millisecond)

	stats := client.AllPoolStats()[0].PoolStats
	assert.Equal(t, uint64(1), stats.CreatedConns)
	assert.Equal(t, uint64(0), stats.DestroyedConns)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, err := NewClient(NewStaticServers("a:1"), Config{MaxSize: 1, HealthCheckInterval: time.Millisecond})
	require.NoError(t, err)

	client.Close()
	client.Close()
}

func TestExpTime(t *testing.T) {
	assert.Equal(t, int64(0), expTime(0))
	assert.Equal(t, int64(0), expTime(-time.Second))
	assert.Equal(t, int64(1), expTime(time.Millisecond))
	assert.Equal(t, int64(60), expTime(time.Minute))
	assert.Equal(t, int64(2592000), expTime(365*24*time.Hour))
}
