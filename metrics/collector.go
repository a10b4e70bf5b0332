package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pior/memcached"
	"github.com/pior/memcached/cache"
)

const namespace = "memcached"

// Sources supplies the stats snapshots exported on each scrape.
// Nil sources are skipped.
type Sources struct {
	Cache     func() cache.Stats
	Processor func() memcached.ProcessorStats
	Server    func() memcached.ServerStats
}

// Collector exports server counters as Prometheus metrics.
// Values are read from the snapshots at scrape time.
type Collector struct {
	sources Sources

	cacheItems     *prometheus.Desc
	cacheHits      *prometheus.Desc
	cacheMisses    *prometheus.Desc
	cachePuts      *prometheus.Desc
	cacheEvictions *prometheus.Desc
	cacheExpired   *prometheus.Desc

	commands       *prometheus.Desc
	getHits        *prometheus.Desc
	getMisses      *prometheus.Desc
	casOutcomes    *prometheus.Desc
	protocolErrors *prometheus.Desc

	currConns      *prometheus.Desc
	totalConns     *prometheus.Desc
	bytesRead      *prometheus.Desc
	bytesWritten   *prometheus.Desc
	framesTooLarge *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector over sources.
func NewCollector(sources Sources) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		sources: sources,

		cacheItems:     desc("cache_items", "Entries currently stored"),
		cacheHits:      desc("cache_hits_total", "Cache lookups that found a live entry"),
		cacheMisses:    desc("cache_misses_total", "Cache lookups that found nothing or an expired entry"),
		cachePuts:      desc("cache_puts_total", "Entries written"),
		cacheEvictions: desc("cache_evictions_total", "Entries evicted under capacity pressure"),
		cacheExpired:   desc("cache_expired_total", "Expired entries reclaimed by the purge sweep"),

		commands:       desc("commands_total", "Commands executed", "operation"),
		getHits:        desc("get_hits_total", "Keys found by get and gets"),
		getMisses:      desc("get_misses_total", "Keys absent for get and gets"),
		casOutcomes:    desc("cas_total", "cas commands by outcome", "outcome"),
		protocolErrors: desc("protocol_errors_total", "Frames rejected by the parser"),

		currConns:      desc("connections", "Open client connections"),
		totalConns:     desc("connections_total", "Client connections accepted"),
		bytesRead:      desc("read_bytes_total", "Bytes read from clients"),
		bytesWritten:   desc("written_bytes_total", "Bytes written to clients"),
		framesTooLarge: desc("frames_too_large_total", "Frames rejected for exceeding the size limit"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.cacheItems, c.cacheHits, c.cacheMisses, c.cachePuts, c.cacheEvictions, c.cacheExpired,
		c.commands, c.getHits, c.getMisses, c.casOutcomes, c.protocolErrors,
		c.currConns, c.totalConns, c.bytesRead, c.bytesWritten, c.framesTooLarge,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	if c.sources.Cache != nil {
		s := c.sources.Cache()
		gauge(c.cacheItems, s.Items)
		counter(c.cacheHits, s.Hits)
		counter(c.cacheMisses, s.Misses)
		counter(c.cachePuts, s.Puts)
		counter(c.cacheEvictions, s.Evictions)
		counter(c.cacheExpired, s.Expired)
	}

	if c.sources.Processor != nil {
		s := c.sources.Processor()
		for op, n := range s.Commands() {
			counter(c.commands, n, string(op))
		}
		counter(c.getHits, s.GetHits)
		counter(c.getMisses, s.GetMisses)
		counter(c.casOutcomes, s.CasHits, "stored")
		counter(c.casOutcomes, s.CasMisses, "not_found")
		counter(c.casOutcomes, s.CasBadval, "exists")
		counter(c.protocolErrors, s.ProtocolErrors)
	}

	if c.sources.Server != nil {
		s := c.sources.Server()
		gauge(c.currConns, s.CurrConnections)
		counter(c.totalConns, s.TotalConnections)
		counter(c.bytesRead, s.BytesRead)
		counter(c.bytesWritten, s.BytesWritten)
		counter(c.framesTooLarge, s.FramesTooLarge)
	}
}
