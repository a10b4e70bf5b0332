package client

import (
	"bufio"
	"context"
	"errors"
	"net"

	"github.com/pior/memcached/protocol"
)

// Connection is a single connection to a server. It is not safe for
// concurrent use: the pool hands it to one caller at a time.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
}

func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes cmd and reads its reply.
//
// Storage commands sent with NoReply return an empty Response without
// reading. The context deadline, if any, bounds both the write and the read.
func (c *Connection) Send(ctx context.Context, cmd *protocol.Command) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline() // zero time clears a previous deadline
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, &ConnectionError{Op: "set deadline", Err: err}
	}

	if err := WriteRequest(c.conn, cmd); err != nil {
		return nil, &ConnectionError{Op: "write", Err: err}
	}

	if cmd.NoReply && cmd.Operation.IsStorage() {
		return &Response{}, nil
	}

	resp, err := ReadResponse(c.reader)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return nil, err
		}
		return nil, &ConnectionError{Op: "read", Err: err}
	}
	return resp, nil
}

// Ping checks the connection with a get on a key that is never stored.
func (c *Connection) Ping(ctx context.Context) error {
	resp, err := c.Send(ctx, &protocol.Command{Operation: protocol.OpGet, Keys: []string{"_ping"}})
	if err != nil {
		return err
	}
	if resp.HasError() {
		return resp.Error
	}
	if resp.Status != StatusEnd {
		return &ParseError{Message: "unexpected ping reply " + string(resp.Status)}
	}
	return nil
}

func (c *Connection) Close() error {
	return c.conn.Close()
}
