package protocol

// Operation is a text protocol command name.
type Operation string

// Storage operations carry a parameter line followed by a data line.
//
// Wire formats:
//
//	set|add|replace <key> <flags> <exptime> <bytes> [noreply]\r\n<data>\r\n
//	append|prepend <key> <bytes> [noreply]\r\n<data>\r\n
//	cas <key> <flags> <exptime> <bytes> <cas unique> [noreply]\r\n<data>\r\n
const (
	OpSet     Operation = "set"
	OpAdd     Operation = "add"
	OpReplace Operation = "replace"
	OpAppend  Operation = "append"
	OpPrepend Operation = "prepend"
	OpCas     Operation = "cas"
)

// Retrieval operations carry one or more keys on a single line.
//
// Wire format:
//
//	get|gets <key>+\r\n
const (
	OpGet  Operation = "get"
	OpGets Operation = "gets"
)

// Operations lists every recognized operation.
var Operations = []Operation{OpGet, OpGets, OpSet, OpAdd, OpReplace, OpAppend, OpPrepend, OpCas}

// IsRetrieval reports whether op is get or gets.
func (op Operation) IsRetrieval() bool {
	return op == OpGet || op == OpGets
}

// IsStorage reports whether op is one of the six storage operations.
func (op Operation) IsStorage() bool {
	_, ok := storageRules[op]
	return ok
}

// Valid reports whether op is a recognized operation.
func (op Operation) Valid() bool {
	return op.IsRetrieval() || op.IsStorage()
}

// Protocol delimiters
const (
	// CRLF terminates every line of the protocol
	CRLF = "\r\n"

	// Space separates tokens on a command line
	Space = " "

	// NoReplyMarker is the trailing token suppressing the reply of a storage command.
	NoReplyMarker = "[noreply]"
)

// Reply vocabulary
const (
	ReplyStored    = "STORED\r\n"
	ReplyNotStored = "NOT_STORED\r\n"
	ReplyExists    = "EXISTS\r\n"
	ReplyNotFound  = "NOT_FOUND\r\n"
	ReplyEnd       = "END\r\n"
	ReplyError     = "ERROR\r\n"

	ValuePrefix       = "VALUE"
	EndMarker         = "END"
	ErrorGeneric      = "ERROR"
	ErrorClientPrefix = "CLIENT_ERROR"
	ErrorServerPrefix = "SERVER_ERROR"
)

// Protocol limits
const (
	// MaxKeyLength is the default maximum key length in bytes.
	MaxKeyLength = 250

	// MaxExpTime is the largest accepted exptime: 30 days in seconds.
	MaxExpTime = 60 * 60 * 24 * 30
)
