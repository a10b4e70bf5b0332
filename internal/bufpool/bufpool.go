// Package bufpool recycles byte buffers used to encode requests.
package bufpool

import (
	"bytes"
	"sync"
)

// maxRetained bounds the capacity of buffers returned to the pool.
// Larger buffers are dropped so one big value does not pin memory.
const maxRetained = 64 << 10

type Pool struct {
	pool sync.Pool
}

func New(initialSize int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

func (p *Pool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *Pool) Put(buf *bytes.Buffer) {
	if buf.Cap() > maxRetained {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
