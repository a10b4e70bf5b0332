package protocol

import "errors"

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	// UnknownOperation is reported when the leading token is not a recognized operation.
	// It is the only kind rendered as a bare ERROR reply.
	UnknownOperation ErrorKind = iota + 1
	MalformedFrame
	MissingParameters
	TooManyParameters
	InvalidNoReply
	MissingKeys
	KeyTooLong
	InvalidFlags
	InvalidExpTime
	InvalidBytes
	ByteLengthMismatch
)

var errorKindNames = map[ErrorKind]string{
	UnknownOperation:   "UnknownOperation",
	MalformedFrame:     "MalformedFrame",
	MissingParameters:  "MissingParameters",
	TooManyParameters:  "TooManyParameters",
	InvalidNoReply:     "InvalidNoReply",
	MissingKeys:        "MissingKeys",
	KeyTooLong:         "KeyTooLong",
	InvalidFlags:       "InvalidFlags",
	InvalidExpTime:     "InvalidExpTime",
	InvalidBytes:       "InvalidBytes",
	ByteLengthMismatch: "ByteLengthMismatch",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "ErrorKind(unknown)"
}

// Stable client error messages.
const (
	msgMalformedFrame     = "Storage commands must be sent with their respective parameters"
	msgUnterminated       = "Commands must be terminated by \\r\\n"
	msgRetrievalTrailing  = "Retrieval commands must be sent in a single line"
	msgMissingParameters  = "Missing parameters"
	msgTooManyParameters  = "Too many parameters"
	msgInvalidNoReply     = "Invalid noreply"
	msgMissingKeys        = "Retrieval commands must be sent with at least one key"
	msgFlagsNotNumber     = "Flags must be a number"
	msgFlagsNegative      = "Flags must be a positive number"
	msgExpTimeNotNumber   = "ExpTime must be a number"
	msgExpTimeNegative    = "ExpTime must be a positive number"
	msgExpTimeTooLarge    = "ExpTime must be <= 60 * 60 * 24 * 30 (30 days)"
	msgBytesNotNumber     = "Bytes must be a number"
	msgBytesNegative      = "Bytes must be >= 0"
	msgByteLengthMismatch = "The given bytes must match with the data length"
)

// ProtocolError is returned by the parser for any frame that does not
// produce a Command. Parse failures never reach the cache.
type ProtocolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Kind == UnknownOperation {
		return ErrorGeneric
	}
	return ErrorClientPrefix + Space + e.Message
}

// Reply renders the error as the protocol line sent back to the client.
func (e *ProtocolError) Reply() string {
	return e.Error() + CRLF
}

// ShouldCloseConnection reports whether the transport may drop the connection.
// Only an unknown operation or a broken frame leave the stream in an uncertain state.
func (e *ProtocolError) ShouldCloseConnection() bool {
	return e.Kind == UnknownOperation || e.Kind == MalformedFrame
}

func newError(kind ErrorKind, msg string) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: msg}
}

// KindOf returns the ErrorKind carried by err, or zero if err is not a *ProtocolError.
func KindOf(err error) ErrorKind {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
