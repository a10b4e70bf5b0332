package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pior/memcached/internal/logging"
)

// Default limits.
const (
	DefaultCapacity      = 100
	DefaultMaxTTL        = 30 * 24 * time.Hour
	DefaultPurgeInterval = 10 * 24 * time.Hour
)

// Entry is a cached value.
type Entry struct {
	Data  []byte
	Flags float64
	Bytes int
	CAS   string
}

// Config controls cache limits and maintenance.
// Every field is read once by New.
type Config struct {
	// Capacity is the maximum number of entries. Zero means DefaultCapacity.
	Capacity int

	// MaxTTL caps every expiry, and replaces any TTL that is not positive.
	// Zero means DefaultMaxTTL.
	MaxTTL time.Duration

	// PurgeInterval is the period of the expiry sweep. Zero means
	// DefaultPurgeInterval, a negative value disables the sweep.
	PurgeInterval time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives purge reports. Defaults to the operational logger.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = DefaultMaxTTL
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = DefaultPurgeInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logging.Op()
	}
	return c
}

// Cache is a bounded LRU store with per-entry expiry.
//
// All state sits behind one mutex: the key index, the recency list and the
// expiry timestamps only change together. Reads that touch an entry are
// mutations too.
type Cache struct {
	mu    sync.Mutex
	index map[string]int32
	list  recency

	capacity int
	maxTTL   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	stats    *statsCollector

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a cache and starts the purge loop unless it is disabled.
// Call Close to stop it.
func New(cfg Config) *Cache {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cache{
		index:    make(map[string]int32, cfg.Capacity),
		list:     newRecency(cfg.Capacity),
		capacity: cfg.Capacity,
		maxTTL:   cfg.MaxTTL,
		now:      cfg.Now,
		logger:   cfg.Logger,
		stats:    newStatsCollector(),
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.PurgeInterval > 0 {
		c.wg.Add(1)
		go c.purgeLoop(cfg.PurgeInterval)
	}

	return c
}

// Close stops the purge loop. The cache stays usable.
// Close is safe to call multiple times.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int {
	return c.capacity
}

// MaxTTL returns the expiry ceiling.
func (c *Cache) MaxTTL() time.Duration {
	return c.maxTTL
}

// Atomic runs fn with exclusive access to the cache.
// The Tx must not be retained after fn returns.
func (c *Cache) Atomic(fn func(tx *Tx)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&Tx{c: c, now: c.now()})
}

// Has reports whether key holds an unexpired entry.
func (c *Cache) Has(key string) bool {
	var ok bool
	c.Atomic(func(tx *Tx) { ok = tx.Has(key) })
	return ok
}

// Get returns the entry stored under key. With touch set, the entry becomes
// the most recently used.
func (c *Cache) Get(key string, touch bool) (Entry, bool) {
	var (
		e  Entry
		ok bool
	)
	c.Atomic(func(tx *Tx) { e, ok = tx.Get(key, touch) })
	return e, ok
}

// Put stores entry under key with the given ttl.
func (c *Cache) Put(key string, entry Entry, ttl time.Duration) {
	c.Atomic(func(tx *Tx) { tx.Put(key, entry, ttl) })
}

// PurgeExpired removes every expired entry and returns their keys.
func (c *Cache) PurgeExpired() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	var expired []int32
	c.list.each(func(i int32) bool {
		if !now.Before(c.list.nodes[i].expiresAt) {
			expired = append(expired, i)
		}
		return true
	})

	keys := make([]string, 0, len(expired))
	for _, i := range expired {
		keys = append(keys, c.list.nodes[i].key)
		c.removeLocked(i)
	}

	c.stats.recordExpired(len(keys))
	return keys
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]int32, c.capacity)
	c.list = newRecency(c.capacity)
	c.stats.setItems(0)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.list.len
}

// Keys returns the stored keys from most to least recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.list.len)
	c.list.each(func(i int32) bool {
		keys = append(keys, c.list.nodes[i].key)
		return true
	})
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Cache) lookupLocked(key string, now time.Time) (int32, bool) {
	i, ok := c.index[key]
	if !ok {
		return nilIndex, false
	}
	if !now.Before(c.list.nodes[i].expiresAt) {
		return nilIndex, false
	}
	return i, true
}

func (c *Cache) expiryLocked(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	return now.Add(ttl)
}

func (c *Cache) removeLocked(i int32) {
	delete(c.index, c.list.nodes[i].key)
	c.list.unlink(i)
	c.list.release(i)
	c.stats.setItems(c.list.len)
}

func (c *Cache) purgeLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			keys := c.PurgeExpired()
			c.logger.Debug("cache purge", "evicted", len(keys), "items", c.Len())
		}
	}
}

// Tx is exclusive access to the cache for the duration of Cache.Atomic.
// Every call in one Tx observes the same clock reading.
type Tx struct {
	c   *Cache
	now time.Time
}

// Has reports whether key holds an unexpired entry.
func (tx *Tx) Has(key string) bool {
	_, ok := tx.c.lookupLocked(key, tx.now)
	return ok
}

// Get returns the entry stored under key, moving it to the most recently
// used position when touch is set. Expired entries are reported absent.
func (tx *Tx) Get(key string, touch bool) (Entry, bool) {
	i, ok := tx.c.lookupLocked(key, tx.now)
	if !ok {
		tx.c.stats.recordGet(false)
		return Entry{}, false
	}
	tx.c.stats.recordGet(true)

	if touch {
		tx.c.list.moveToHead(i)
	}
	return tx.c.list.nodes[i].entry, true
}

// Remaining returns how long the entry under key has left to live.
func (tx *Tx) Remaining(key string) (time.Duration, bool) {
	i, ok := tx.c.lookupLocked(key, tx.now)
	if !ok {
		return 0, false
	}
	return tx.c.list.nodes[i].expiresAt.Sub(tx.now), true
}

// Put stores entry under key and makes it the most recently used.
// Inserting a new key into a full cache first evicts the least recently used entry.
func (tx *Tx) Put(key string, entry Entry, ttl time.Duration) {
	c := tx.c
	entry.Bytes = len(entry.Data)
	expiresAt := c.expiryLocked(tx.now, ttl)

	if i, ok := c.index[key]; ok {
		n := &c.list.nodes[i]
		n.entry = entry
		n.expiresAt = expiresAt
		c.list.moveToHead(i)
		c.stats.recordPut()
		return
	}

	if c.list.len >= c.capacity {
		c.removeLocked(c.list.tail)
		c.stats.recordEviction()
	}

	i := c.list.alloc()
	n := &c.list.nodes[i]
	n.key = key
	n.entry = entry
	n.expiresAt = expiresAt
	c.list.linkAtHead(i)
	c.index[key] = i

	c.stats.recordPut()
	c.stats.setItems(c.list.len)
}
