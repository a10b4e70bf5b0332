package memcached

import (
	"io"

	"github.com/pior/memcached/protocol"
)

// Reply is the outcome of one frame.
//
// A Reply either carries bytes to write verbatim or is the no-reply
// sentinel, which tells the transport to write nothing. The sentinel is not
// an empty payload: StatusReply("") still asks for an (empty) write.
type Reply struct {
	payload []byte
	silent  bool
	err     error
}

// NoReply returns the sentinel for a suppressed reply.
func NoReply() Reply {
	return Reply{silent: true}
}

// StatusReply wraps a literal protocol line such as protocol.ReplyStored.
func StatusReply(line string) Reply {
	return Reply{payload: []byte(line)}
}

// ErrorReply renders a parse failure.
func ErrorReply(err *protocol.ProtocolError) Reply {
	return Reply{payload: []byte(err.Reply()), err: err}
}

// ServerErrorReply reports an internal fault.
func ServerErrorReply(msg string) Reply {
	return Reply{payload: []byte(protocol.ErrorServerPrefix + protocol.Space + msg + protocol.CRLF)}
}

// IsNoReply reports whether r is the no-reply sentinel.
func (r Reply) IsNoReply() bool {
	return r.silent
}

// Bytes returns the payload. It is nil for the sentinel.
func (r Reply) Bytes() []byte {
	return r.payload
}

func (r Reply) String() string {
	return string(r.payload)
}

// Err returns the parse error this reply renders, if any.
func (r Reply) Err() error {
	return r.err
}

// WriteTo writes the payload to w. The sentinel writes nothing.
func (r Reply) WriteTo(w io.Writer) (int64, error) {
	if r.silent || len(r.payload) == 0 {
		return 0, nil
	}
	n, err := w.Write(r.payload)
	return int64(n), err
}
