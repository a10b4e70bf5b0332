package client

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pior/memcached/protocol"
)

// Item is a value stored under a key.
type Item struct {
	Key   string
	Value []byte
	Flags float64

	// TTL is rounded up to whole seconds. Zero means the server maximum.
	TTL time.Duration

	// CAS is the token returned by Gets and required by CompareAndSwap.
	CAS string

	// NoReply sends a storage command without waiting for its outcome.
	NoReply bool
}

// Config holds configuration for the client connection pools.
type Config struct {
	// MaxSize is the maximum number of connections per server.
	// Required: must be > 0.
	MaxSize int32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are checked.
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// Dialer is used to create new connections. Defaults to a zero net.Dialer.
	Dialer *net.Dialer

	// Pool is the connection pool factory. Defaults to NewChannelPool.
	Pool PoolFactory

	// SelectServer picks which server to use for a key.
	// Defaults to DefaultSelectServer.
	SelectServer SelectServerFunc

	// NewCircuitBreaker creates the breaker of a server when its pool is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// for testing purposes only
	constructor func(ctx context.Context) (*Connection, error)
}

type serverPool struct {
	addr           string
	pool           Pool
	circuitBreaker CircuitBreaker // nil if not configured
}

// Client talks to one or more servers, each through its own connection pool.
type Client struct {
	servers      Servers
	selectServer SelectServerFunc
	config       Config

	mu    sync.RWMutex
	pools map[string]*serverPool

	stopHealthCheck chan struct{}
	healthCheckDone sync.WaitGroup
	closeOnce       sync.Once

	stats clientStatsCollector
}

// NewClient creates a client. For a single server use:
//
//	NewClient(NewStaticServers("host:port"), config)
func NewClient(servers Servers, config Config) (*Client, error) {
	if len(servers.List()) == 0 {
		return nil, ErrNoServers
	}
	if config.MaxSize <= 0 {
		return nil, fmt.Errorf("memcache: invalid MaxSize %d", config.MaxSize)
	}

	if config.SelectServer == nil {
		config.SelectServer = DefaultSelectServer
	}
	if config.Dialer == nil {
		config.Dialer = &net.Dialer{}
	}
	if config.Pool == nil {
		config.Pool = NewChannelPool
	}

	c := &Client{
		servers:         servers,
		selectServer:    config.SelectServer,
		config:          config,
		pools:           make(map[string]*serverPool),
		stopHealthCheck: make(chan struct{}),
	}

	if config.HealthCheckInterval > 0 {
		c.healthCheckDone.Add(1)
		go c.healthCheckLoop()
	}

	return c, nil
}

// Close stops the health checks and closes every pool.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopHealthCheck)
		c.healthCheckDone.Wait()

		c.mu.Lock()
		defer c.mu.Unlock()

		for _, sp := range c.pools {
			sp.pool.Close()
		}
	})
}

func (c *Client) poolForKey(key string) (*serverPool, error) {
	addr, err := c.selectServer(key, c.servers.List())
	if err != nil {
		return nil, err
	}
	return c.poolForAddr(addr)
}

// poolForAddr returns the pool of addr, creating it on first use.
func (c *Client) poolForAddr(addr string) (*serverPool, error) {
	c.mu.RLock()
	sp, exists := c.pools[addr]
	c.mu.RUnlock()
	if exists {
		return sp, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if sp, exists := c.pools[addr]; exists {
		return sp, nil
	}

	constructor := c.config.constructor
	if constructor == nil {
		constructor = func(ctx context.Context) (*Connection, error) {
			netConn, err := c.config.Dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, err
			}
			return NewConnection(netConn), nil
		}
	}

	pool, err := c.config.Pool(constructor, c.config.MaxSize)
	if err != nil {
		return nil, err
	}

	sp = &serverPool{addr: addr, pool: pool}
	if c.config.NewCircuitBreaker != nil {
		sp.circuitBreaker = c.config.NewCircuitBreaker(addr)
	}
	c.pools[addr] = sp
	return sp, nil
}

func (c *Client) healthCheckLoop() {
	defer c.healthCheckDone.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllPools()
		}
	}
}

func (c *Client) checkAllPools() {
	c.mu.RLock()
	pools := make([]*serverPool, 0, len(c.pools))
	for _, sp := range c.pools {
		pools = append(pools, sp)
	}
	c.mu.RUnlock()

	for _, sp := range pools {
		c.checkPoolConnections(sp.pool)
	}
}

// checkPoolConnections destroys idle connections that are too old, idle
// for too long, or fail a ping.
func (c *Client) checkPoolConnections(pool Pool) {
	now := time.Now()

	for _, res := range pool.AcquireAllIdle() {
		if c.config.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > c.config.MaxConnLifetime {
			res.Destroy()
			continue
		}

		if c.config.MaxConnIdleTime > 0 && res.IdleDuration() > c.config.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := res.Value().Ping(ctx)
		cancel()
		if err != nil {
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

// execute runs one request-response cycle on a pooled connection,
// through the server's circuit breaker when one is configured.
func (c *Client) execute(ctx context.Context, sp *serverPool, cmd *protocol.Command) (*Response, error) {
	if sp.circuitBreaker == nil {
		return c.executeDirect(ctx, sp.pool, cmd)
	}
	return sp.circuitBreaker.Execute(func() (*Response, error) {
		return c.executeDirect(ctx, sp.pool, cmd)
	})
}

func (c *Client) executeDirect(ctx context.Context, pool Pool, cmd *protocol.Command) (*Response, error) {
	resource, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := resource.Value().Send(ctx, cmd)
	if err == nil && resp.HasError() {
		err = resp.Error
	}
	if err != nil {
		if ShouldCloseConnection(err) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	resource.Release()
	return resp, nil
}

// store sends a storage command for item and maps the reply status to an error.
func (c *Client) store(ctx context.Context, op protocol.Operation, item Item, counter *uint64) error {
	cmd := &protocol.Command{
		Operation: op,
		Key:       item.Key,
		Data:      item.Value,
		Flags:     item.Flags,
		ExpTime:   expTime(item.TTL),
		Bytes:     len(item.Value),
		CasUnique: item.CAS,
		NoReply:   item.NoReply,
	}

	resp, err := c.send(ctx, item.Key, cmd)
	if err != nil {
		return err
	}

	switch resp.Status {
	case StatusStored:
		c.stats.recordStore(counter)
		return nil
	case StatusNotStored:
		return ErrNotStored
	case StatusNotFound:
		return ErrNotFound
	case StatusExists:
		return ErrCASConflict
	case "":
		if item.NoReply {
			c.stats.recordStore(counter)
			return nil
		}
	}

	c.stats.recordError()
	return &ParseError{Message: fmt.Sprintf("unexpected status %q for %s", resp.Status, op)}
}

// send validates cmd and executes it on the server owning key.
func (c *Client) send(ctx context.Context, key string, cmd *protocol.Command) (*Response, error) {
	if err := ValidateCommand(cmd); err != nil {
		c.stats.recordError()
		return nil, err
	}

	sp, err := c.poolForKey(key)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	resp, err := c.execute(ctx, sp, cmd)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	return resp, nil
}

// Set stores an item unconditionally.
func (c *Client) Set(ctx context.Context, item Item) error {
	return c.store(ctx, protocol.OpSet, item, &c.stats.stats.Sets)
}

// Add stores an item only if the key is absent. Returns ErrNotStored otherwise.
func (c *Client) Add(ctx context.Context, item Item) error {
	return c.store(ctx, protocol.OpAdd, item, &c.stats.stats.Adds)
}

// Replace stores an item only if the key is present. Returns ErrNotStored otherwise.
func (c *Client) Replace(ctx context.Context, item Item) error {
	return c.store(ctx, protocol.OpReplace, item, &c.stats.stats.Replaces)
}

// Append adds data after the current value. Returns ErrNotFound if the key is absent.
func (c *Client) Append(ctx context.Context, key string, data []byte) error {
	return c.store(ctx, protocol.OpAppend, Item{Key: key, Value: data}, &c.stats.stats.Appends)
}

// Prepend adds data before the current value. Returns ErrNotFound if the key is absent.
func (c *Client) Prepend(ctx context.Context, key string, data []byte) error {
	return c.store(ctx, protocol.OpPrepend, Item{Key: key, Value: data}, &c.stats.stats.Prepends)
}

// CompareAndSwap stores item if its CAS token still matches the server's.
// Returns ErrCASConflict if the item changed and ErrNotFound if it is gone.
func (c *Client) CompareAndSwap(ctx context.Context, item Item) error {
	if item.CAS == "" {
		c.stats.recordError()
		return fmt.Errorf("memcache: CompareAndSwap requires a CAS token")
	}
	return c.store(ctx, protocol.OpCas, item, &c.stats.stats.CompareAndSwaps)
}

// Get returns the item stored under key, or ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	return c.getOne(ctx, protocol.OpGet, key)
}

// Gets is Get with the item's CAS token.
func (c *Client) Gets(ctx context.Context, key string) (Item, error) {
	return c.getOne(ctx, protocol.OpGets, key)
}

func (c *Client) getOne(ctx context.Context, op protocol.Operation, key string) (Item, error) {
	items, err := c.retrieve(ctx, op, key, []string{key})
	if err != nil {
		return Item{}, err
	}
	item, ok := items[key]
	if !ok {
		return Item{}, ErrCacheMiss
	}
	return item, nil
}

// GetMulti fetches keys with one get per server, querying servers
// concurrently. Missing keys are absent from the result.
func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string]Item, error) {
	byServer := make(map[string][]string)
	for _, key := range keys {
		addr, err := c.selectServer(key, c.servers.List())
		if err != nil {
			c.stats.recordError()
			return nil, err
		}
		byServer[addr] = append(byServer[addr], key)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]Item, len(keys))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range byServer {
		g.Go(func() error {
			items, err := c.retrieve(gctx, protocol.OpGet, group[0], group)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for key, item := range items {
				found[key] = item
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

func (c *Client) retrieve(ctx context.Context, op protocol.Operation, routeKey string, keys []string) (map[string]Item, error) {
	resp, err := c.send(ctx, routeKey, &protocol.Command{Operation: op, Keys: keys})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusEnd {
		c.stats.recordError()
		return nil, &ParseError{Message: fmt.Sprintf("unexpected status %q for %s", resp.Status, op)}
	}

	items := make(map[string]Item, len(resp.Values))
	for _, v := range resp.Values {
		items[v.Key] = Item{Key: v.Key, Value: v.Data, Flags: v.Flags, CAS: v.CAS}
	}
	c.stats.recordGets(len(keys), len(items))
	return items, nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// ServerPoolStats contains stats for a single server pool.
type ServerPoolStats struct {
	Addr                string
	PoolStats           PoolStats
	CircuitBreakerState string // empty without a circuit breaker
}

// AllPoolStats returns stats for every server pool created so far.
func (c *Client) AllPoolStats() []ServerPoolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]ServerPoolStats, 0, len(c.pools))
	for _, sp := range c.pools {
		s := ServerPoolStats{
			Addr:      sp.addr,
			PoolStats: sp.pool.Stats(),
		}
		if sp.circuitBreaker != nil {
			s.CircuitBreakerState = sp.circuitBreaker.State().String()
		}
		stats = append(stats, s)
	}
	return stats
}

// expTime converts a TTL to whole seconds, rounding up and capping at the protocol maximum.
func expTime(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	seconds := int64(math.Ceil(ttl.Seconds()))
	return min(seconds, protocol.MaxExpTime)
}
