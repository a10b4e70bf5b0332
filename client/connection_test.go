package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/memcached/internal/testutils"
	"github.com/pior/memcached/protocol"
)

func TestConnection_Send(t *testing.T) {
	mock := testutils.NewConnectionMock("STORED\r\n")
	conn := NewConnection(mock)

	resp, err := conn.Send(context.Background(), &protocol.Command{Operation: protocol.OpSet, Key: "k", Data: []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, StatusStored, resp.Status)
	assert.Equal(t, "set k 0 0 1\r\nv\r\n", mock.GetWrittenRequest())
}

func TestConnection_SendNoReply(t *testing.T) {
	mock := testutils.NewConnectionMock() // nothing to read
	conn := NewConnection(mock)

	resp, err := conn.Send(context.Background(), &protocol.Command{Operation: protocol.OpSet, Key: "k", Data: []byte("v"), NoReply: true})
	require.NoError(t, err)
	assert.Equal(t, Status(""), resp.Status)
	assert.Equal(t, "set k 0 0 1 [noreply]\r\nv\r\n", mock.GetWrittenRequest())
}

func TestConnection_SendReadError(t *testing.T) {
	conn := NewConnection(testutils.NewConnectionMock())

	_, err := conn.Send(context.Background(), &protocol.Command{Operation: protocol.OpGet, Keys: []string{"k"}})

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "read", connErr.Op)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, ShouldCloseConnection(err))
}

func TestConnection_SendParseError(t *testing.T) {
	conn := NewConnection(testutils.NewConnectionMock("WAT\r\n"))

	_, err := conn.Send(context.Background(), &protocol.Command{Operation: protocol.OpGet, Keys: []string{"k"}})

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestConnection_SendCanceled(t *testing.T) {
	mock := testutils.NewConnectionMock("END\r\n")
	conn := NewConnection(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Send(ctx, &protocol.Command{Operation: protocol.OpGet, Keys: []string{"k"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.GetWrittenRequest())
}

func TestConnection_Ping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, NewConnection(testutils.NewConnectionMock("END\r\n")).Ping(ctx))
	require.Error(t, NewConnection(testutils.NewConnectionMock("ERROR\r\n")).Ping(ctx))
	require.Error(t, NewConnection(testutils.NewConnectionMock()).Ping(ctx))
}

func TestConnection_Close(t *testing.T) {
	mock := testutils.NewConnectionMock()
	require.NoError(t, NewConnection(mock).Close())
	assert.True(t, mock.Closed())
}
