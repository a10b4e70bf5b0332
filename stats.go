package memcached

import (
	"sync/atomic"

	"github.com/pior/memcached/protocol"
)

// ProcessorStats contains command counters.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as:
//   - Counters: the Cmd* fields (with an operation label), ProtocolErrors
//   - Counters: CasHits, CasMisses, CasBadval
type ProcessorStats struct {
	CmdGet     uint64
	CmdGets    uint64
	CmdSet     uint64
	CmdAdd     uint64
	CmdReplace uint64
	CmdAppend  uint64
	CmdPrepend uint64
	CmdCas     uint64

	GetHits   uint64 // Keys found by get and gets
	GetMisses uint64 // Keys absent for get and gets
	CasHits   uint64 // cas commands that stored
	CasMisses uint64 // cas commands on a missing key
	CasBadval uint64 // cas commands with a stale token

	ProtocolErrors uint64 // Frames rejected by the parser
}

// Commands returns the command counters keyed by operation.
func (s ProcessorStats) Commands() map[protocol.Operation]uint64 {
	return map[protocol.Operation]uint64{
		protocol.OpGet:     s.CmdGet,
		protocol.OpGets:    s.CmdGets,
		protocol.OpSet:     s.CmdSet,
		protocol.OpAdd:     s.CmdAdd,
		protocol.OpReplace: s.CmdReplace,
		protocol.OpAppend:  s.CmdAppend,
		protocol.OpPrepend: s.CmdPrepend,
		protocol.OpCas:     s.CmdCas,
	}
}

// ServerStats contains transport counters.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as:
//   - Gauge: CurrConnections
//   - Counters: TotalConnections, BytesRead, BytesWritten, FramesTooLarge
type ServerStats struct {
	TotalConnections uint64
	BytesRead        uint64
	BytesWritten     uint64
	FramesTooLarge   uint64
	CurrConnections  int64
}

type processorStatsCollector struct {
	stats ProcessorStats
}

func newProcessorStatsCollector() *processorStatsCollector {
	return &processorStatsCollector{}
}

func (c *processorStatsCollector) counter(op protocol.Operation) *uint64 {
	switch op {
	case protocol.OpGet:
		return &c.stats.CmdGet
	case protocol.OpGets:
		return &c.stats.CmdGets
	case protocol.OpSet:
		return &c.stats.CmdSet
	case protocol.OpAdd:
		return &c.stats.CmdAdd
	case protocol.OpReplace:
		return &c.stats.CmdReplace
	case protocol.OpAppend:
		return &c.stats.CmdAppend
	case protocol.OpPrepend:
		return &c.stats.CmdPrepend
	case protocol.OpCas:
		return &c.stats.CmdCas
	}
	return nil
}

func (c *processorStatsCollector) recordCommand(op protocol.Operation) {
	if n := c.counter(op); n != nil {
		atomic.AddUint64(n, 1)
	}
}

func (c *processorStatsCollector) recordLookup(hits, misses int) {
	atomic.AddUint64(&c.stats.GetHits, uint64(hits))
	atomic.AddUint64(&c.stats.GetMisses, uint64(misses))
}

func (c *processorStatsCollector) recordCas(status string) {
	switch status {
	case protocol.ReplyStored:
		atomic.AddUint64(&c.stats.CasHits, 1)
	case protocol.ReplyNotFound:
		atomic.AddUint64(&c.stats.CasMisses, 1)
	case protocol.ReplyExists:
		atomic.AddUint64(&c.stats.CasBadval, 1)
	}
}

func (c *processorStatsCollector) recordProtocolError() {
	atomic.AddUint64(&c.stats.ProtocolErrors, 1)
}

func (c *processorStatsCollector) snapshot() ProcessorStats {
	return ProcessorStats{
		CmdGet:         atomic.LoadUint64(&c.stats.CmdGet),
		CmdGets:        atomic.LoadUint64(&c.stats.CmdGets),
		CmdSet:         atomic.LoadUint64(&c.stats.CmdSet),
		CmdAdd:         atomic.LoadUint64(&c.stats.CmdAdd),
		CmdReplace:     atomic.LoadUint64(&c.stats.CmdReplace),
		CmdAppend:      atomic.LoadUint64(&c.stats.CmdAppend),
		CmdPrepend:     atomic.LoadUint64(&c.stats.CmdPrepend),
		CmdCas:         atomic.LoadUint64(&c.stats.CmdCas),
		GetHits:        atomic.LoadUint64(&c.stats.GetHits),
		GetMisses:      atomic.LoadUint64(&c.stats.GetMisses),
		CasHits:        atomic.LoadUint64(&c.stats.CasHits),
		CasMisses:      atomic.LoadUint64(&c.stats.CasMisses),
		CasBadval:      atomic.LoadUint64(&c.stats.CasBadval),
		ProtocolErrors: atomic.LoadUint64(&c.stats.ProtocolErrors),
	}
}

type serverStatsCollector struct {
	stats ServerStats
}

func newServerStatsCollector() *serverStatsCollector {
	return &serverStatsCollector{}
}

func (c *serverStatsCollector) recordOpen() {
	atomic.AddUint64(&c.stats.TotalConnections, 1)
	atomic.AddInt64(&c.stats.CurrConnections, 1)
}

func (c *serverStatsCollector) recordClose() {
	atomic.AddInt64(&c.stats.CurrConnections, -1)
}

func (c *serverStatsCollector) recordRead(n int) {
	atomic.AddUint64(&c.stats.BytesRead, uint64(n))
}

func (c *serverStatsCollector) recordWrite(n int64) {
	atomic.AddUint64(&c.stats.BytesWritten, uint64(n))
}

func (c *serverStatsCollector) recordFrameTooLarge() {
	atomic.AddUint64(&c.stats.FramesTooLarge, 1)
}

func (c *serverStatsCollector) snapshot() ServerStats {
	return ServerStats{
		TotalConnections: atomic.LoadUint64(&c.stats.TotalConnections),
		BytesRead:        atomic.LoadUint64(&c.stats.BytesRead),
		BytesWritten:     atomic.LoadUint64(&c.stats.BytesWritten),
		FramesTooLarge:   atomic.LoadUint64(&c.stats.FramesTooLarge),
		CurrConnections:  atomic.LoadInt64(&c.stats.CurrConnections),
	}
}
