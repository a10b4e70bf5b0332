package memcached

import (
	"strconv"
	"time"

	"github.com/pior/memcached/cache"
	"github.com/pior/memcached/protocol"
)

// FrameHandler turns one complete frame into a reply.
// Implementations must be safe for concurrent use.
type FrameHandler interface {
	Handle(frame []byte) Reply
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	// Parser validates frames in Handle. Defaults to the 250-byte key limit.
	Parser *protocol.Parser

	// Versions issues CAS tokens. Defaults to a CounterVersions.
	Versions VersionGenerator
}

// Processor executes commands against a cache.
type Processor struct {
	cache    *cache.Cache
	parser   *protocol.Parser
	versions VersionGenerator
	stats    *processorStatsCollector
}

var _ FrameHandler = (*Processor)(nil)

// NewProcessor creates a Processor owning no state other than its counters.
// The cache is shared with the caller, who remains responsible for closing it.
func NewProcessor(c *cache.Cache, cfg ProcessorConfig) *Processor {
	if cfg.Parser == nil {
		cfg.Parser = protocol.NewParser(protocol.ParserConfig{})
	}
	if cfg.Versions == nil {
		cfg.Versions = &CounterVersions{}
	}
	return &Processor{
		cache:    c,
		parser:   cfg.Parser,
		versions: cfg.Versions,
		stats:    newProcessorStatsCollector(),
	}
}

// Handle parses frame and executes the resulting command.
// A parse failure never reaches the cache.
func (p *Processor) Handle(frame []byte) Reply {
	cmd, err := p.parser.Parse(frame)
	if err != nil {
		p.stats.recordProtocolError()
		if pe, ok := err.(*protocol.ProtocolError); ok {
			return ErrorReply(pe)
		}
		return ServerErrorReply(err.Error())
	}
	return p.Execute(cmd)
}

// Execute runs a validated command.
// Storage commands with NoReply set return the NoReply sentinel whatever the outcome.
func (p *Processor) Execute(cmd *protocol.Command) Reply {
	p.stats.recordCommand(cmd.Operation)

	switch cmd.Operation {
	case protocol.OpGet:
		return p.retrieve(cmd.Keys, false)
	case protocol.OpGets:
		return p.retrieve(cmd.Keys, true)
	}

	var status string
	switch cmd.Operation {
	case protocol.OpSet:
		status = p.set(cmd)
	case protocol.OpAdd:
		status = p.add(cmd)
	case protocol.OpReplace:
		status = p.replace(cmd)
	case protocol.OpAppend:
		status = p.concat(cmd, false)
	case protocol.OpPrepend:
		status = p.concat(cmd, true)
	case protocol.OpCas:
		status = p.cas(cmd)
		p.stats.recordCas(status)
	default:
		return ServerErrorReply("unsupported operation " + strconv.Quote(string(cmd.Operation)))
	}

	if cmd.NoReply {
		return NoReply()
	}
	return StatusReply(status)
}

// Stats returns a snapshot of the command counters.
func (p *Processor) Stats() ProcessorStats {
	return p.stats.snapshot()
}

func (p *Processor) entry(cmd *protocol.Command) cache.Entry {
	return cache.Entry{
		Data:  cmd.Data,
		Flags: cmd.Flags,
		CAS:   p.versions.Next(),
	}
}

func ttl(cmd *protocol.Command) time.Duration {
	return time.Duration(cmd.ExpTime) * time.Second
}

func (p *Processor) set(cmd *protocol.Command) string {
	p.cache.Atomic(func(tx *cache.Tx) {
		tx.Put(cmd.Key, p.entry(cmd), ttl(cmd))
	})
	return protocol.ReplyStored
}

func (p *Processor) add(cmd *protocol.Command) string {
	status := protocol.ReplyNotStored
	p.cache.Atomic(func(tx *cache.Tx) {
		if tx.Has(cmd.Key) {
			return
		}
		tx.Put(cmd.Key, p.entry(cmd), ttl(cmd))
		status = protocol.ReplyStored
	})
	return status
}

func (p *Processor) replace(cmd *protocol.Command) string {
	status := protocol.ReplyNotStored
	p.cache.Atomic(func(tx *cache.Tx) {
		if !tx.Has(cmd.Key) {
			return
		}
		tx.Put(cmd.Key, p.entry(cmd), ttl(cmd))
		status = protocol.ReplyStored
	})
	return status
}

// concat implements append and prepend. The entry keeps its flags and the
// time it had left to live.
func (p *Processor) concat(cmd *protocol.Command, front bool) string {
	status := protocol.ReplyNotFound
	p.cache.Atomic(func(tx *cache.Tx) {
		current, ok := tx.Get(cmd.Key, false)
		if !ok {
			return
		}
		remaining, _ := tx.Remaining(cmd.Key)

		data := make([]byte, 0, len(current.Data)+len(cmd.Data))
		if front {
			data = append(append(data, cmd.Data...), current.Data...)
		} else {
			data = append(append(data, current.Data...), cmd.Data...)
		}

		tx.Put(cmd.Key, cache.Entry{
			Data:  data,
			Flags: current.Flags,
			CAS:   p.versions.Next(),
		}, remaining)
		status = protocol.ReplyStored
	})
	return status
}

func (p *Processor) cas(cmd *protocol.Command) string {
	status := protocol.ReplyNotFound
	p.cache.Atomic(func(tx *cache.Tx) {
		current, ok := tx.Get(cmd.Key, false)
		if !ok {
			return
		}
		if current.CAS != cmd.CasUnique {
			status = protocol.ReplyExists
			return
		}
		tx.Put(cmd.Key, p.entry(cmd), ttl(cmd))
		status = protocol.ReplyStored
	})
	return status
}

// retrieve renders one value block per live key, in request order.
// Data is copied into the reply while the cache is locked.
func (p *Processor) retrieve(keys []string, withCAS bool) Reply {
	var (
		buf    []byte
		hits   int
		misses int
	)

	p.cache.Atomic(func(tx *cache.Tx) {
		for _, key := range keys {
			e, ok := tx.Get(key, true)
			if !ok {
				misses++
				continue
			}
			hits++
			buf = appendValue(buf, key, e, withCAS)
		}
	})

	p.stats.recordLookup(hits, misses)
	return Reply{payload: append(buf, protocol.ReplyEnd...)}
}

// appendValue renders VALUE <key> <flags> <bytes>[ [<cas>]]\r\n<data>\r\n
func appendValue(buf []byte, key string, e cache.Entry, withCAS bool) []byte {
	buf = append(buf, protocol.ValuePrefix...)
	buf = append(buf, ' ')
	buf = append(buf, key...)
	buf = append(buf, ' ')
	buf = append(buf, protocol.FormatFlags(e.Flags)...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(e.Bytes), 10)
	if withCAS {
		buf = append(buf, " ["...)
		buf = append(buf, e.CAS...)
		buf = append(buf, ']')
	}
	buf = append(buf, protocol.CRLF...)
	buf = append(buf, e.Data...)
	return append(buf, protocol.CRLF...)
}
