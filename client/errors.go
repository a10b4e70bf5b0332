package client

import (
	"errors"
	"fmt"
)

// Outcomes of conditional commands. They are ordinary replies from the
// server and never affect the connection.
var (
	// ErrCacheMiss is returned by Get and Gets when the key is absent.
	ErrCacheMiss = errors.New("memcache: cache miss")

	// ErrNotStored is returned by Add and Replace when the condition failed.
	ErrNotStored = errors.New("memcache: item not stored")

	// ErrNotFound is returned by Append, Prepend and CompareAndSwap on a missing key.
	ErrNotFound = errors.New("memcache: item not found")

	// ErrCASConflict is returned by CompareAndSwap when the item changed since it was read.
	ErrCASConflict = errors.New("memcache: compare-and-swap conflict")
)

// ClientError represents a CLIENT_ERROR reply: the server rejected the request.
//
// Connection handling: CLOSE connection, the request stream may be out of sync.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return "CLIENT_ERROR: " + e.Message
}

// ShouldCloseConnection returns true - client errors require closing connection
func (e *ClientError) ShouldCloseConnection() bool {
	return true
}

// ServerError represents a SERVER_ERROR reply.
//
// Connection handling: Connection can be REUSED, unless the server closed it
// (an oversized frame is answered with a SERVER_ERROR and a disconnect).
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "SERVER_ERROR: " + e.Message
}

// ShouldCloseConnection returns false - server errors don't corrupt protocol state
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// GenericError represents a bare ERROR reply: the server did not recognize the command.
//
// Connection handling: CLOSE connection, protocol state is uncertain.
type GenericError struct {
	Message string
}

func (e *GenericError) Error() string {
	return e.Message
}

// ShouldCloseConnection returns true - generic errors indicate protocol issues
func (e *GenericError) ShouldCloseConnection() bool {
	return true
}

// InvalidKeyError is returned when a key fails validation before being sent.
//
// Connection handling: nothing was sent, the connection is still valid.
type InvalidKeyError struct {
	Message string
}

func (e *InvalidKeyError) Error() string {
	return e.Message
}

// ShouldCloseConnection returns false - the request never reached the connection
func (e *InvalidKeyError) ShouldCloseConnection() bool {
	return false
}

// ParseError reports a reply the client could not parse.
//
// Connection handling: CLOSE connection, state is uncertain.
type ParseError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "parse error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors indicate corrupted state
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps I/O errors from connection operations.
//
// Connection handling: Connection is already broken, CLOSE and potentially RECONNECT
type ConnectionError struct {
	Op  string // Operation that failed (read, write, etc.)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by every error type of this package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
//
// Returns false for nil, ServerError, InvalidKeyError and the outcome
// sentinels (ErrCacheMiss, ErrNotStored, ErrNotFound, ErrCASConflict).
// Unknown errors are treated conservatively and return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrNotStored) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrCASConflict) {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
