package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

var crlfBytes = []byte(CRLF)

// ParserConfig configures a Parser.
type ParserConfig struct {
	// MaxKeyLength bounds the length of every key in bytes.
	// Zero means MaxKeyLength (250).
	MaxKeyLength int
}

// Parser turns raw frames into validated commands.
// A Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	maxKeyLength int
}

// NewParser creates a Parser with the given limits.
func NewParser(cfg ParserConfig) *Parser {
	maxKeyLength := cfg.MaxKeyLength
	if maxKeyLength <= 0 {
		maxKeyLength = MaxKeyLength
	}
	return &Parser{maxKeyLength: maxKeyLength}
}

var defaultParser = NewParser(ParserConfig{})

// Parse parses frame with the default limits.
func Parse(frame []byte) (*Command, error) {
	return defaultParser.Parse(frame)
}

// Parse validates one complete frame and returns the command it encodes.
//
// Frame layout:
//
//	<operation> <parameters>\r\n            (retrieval)
//	<operation> <parameters>\r\n<data>\r\n  (storage)
//
// Any violation is reported as a *ProtocolError. Parse never returns both
// a command and an error.
func (p *Parser) Parse(frame []byte) (*Command, error) {
	line, rest, terminated := bytes.Cut(frame, crlfBytes)

	op := Operation(firstToken(line))
	if !op.Valid() {
		return nil, newError(UnknownOperation, "unknown operation")
	}
	if !terminated {
		return nil, newError(MalformedFrame, msgUnterminated)
	}

	params := strings.FieldsFunc(string(line[len(op):]), isSpace)

	if op.IsRetrieval() {
		return p.parseRetrieval(op, params, rest)
	}
	return p.parseStorage(op, params, rest)
}

// PeekOperation returns the operation named by the first token of line,
// without validating anything else. It lets a transport decide whether a
// data line follows.
func PeekOperation(line []byte) (Operation, bool) {
	op := Operation(firstToken(bytes.TrimSuffix(line, crlfBytes)))
	return op, op.Valid()
}

// firstToken cuts line at the first whitespace, the same separators the
// parameters are split on.
func firstToken(line []byte) []byte {
	if i := bytes.IndexFunc(line, isSpace); i >= 0 {
		return line[:i]
	}
	return line
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\f', '\r', '\n':
		return true
	}
	return false
}

func (p *Parser) parseRetrieval(op Operation, keys []string, rest []byte) (*Command, error) {
	if len(rest) != 0 {
		return nil, newError(MalformedFrame, msgRetrievalTrailing)
	}
	if len(keys) == 0 {
		return nil, newError(MissingKeys, msgMissingKeys)
	}
	for _, key := range keys {
		if err := p.validateKey(key); err != nil {
			return nil, err
		}
	}
	return &Command{Operation: op, Keys: keys}, nil
}

func (p *Parser) parseStorage(op Operation, params []string, rest []byte) (*Command, error) {
	data, ok := bytes.CutSuffix(rest, crlfBytes)
	if !ok {
		return nil, newError(MalformedFrame, msgMalformedFrame)
	}

	r := storageRules[op]
	if err := r.checkArity(params); err != nil {
		return nil, err
	}

	cmd := &Command{
		Operation: op,
		NoReply:   len(params) == r.max,
	}

	var err error
	for i, f := range r.fields {
		token := params[i]
		switch f {
		case fieldKey:
			err = p.validateKey(token)
			cmd.Key = token
		case fieldFlags:
			cmd.Flags, err = parseFlags(token)
		case fieldExpTime:
			cmd.ExpTime, err = parseExpTime(token)
		case fieldBytes:
			cmd.Bytes, err = parseBytes(token)
		case fieldCasUnique:
			cmd.CasUnique = token
		}
		if err != nil {
			return nil, err
		}
	}

	if cmd.Bytes != len(data) {
		return nil, newError(ByteLengthMismatch, msgByteLengthMismatch)
	}

	// The frame buffer belongs to the transport.
	cmd.Data = bytes.Clone(data)
	if cmd.Data == nil {
		cmd.Data = []byte{}
	}
	return cmd, nil
}

func (r rule) checkArity(params []string) error {
	n := len(params)
	switch {
	case n < r.min:
		return newError(MissingParameters, msgMissingParameters)
	case n == r.min && isNoReply(params[n-1]):
		// the marker never counts toward the required parameters
		return newError(MissingParameters, msgMissingParameters)
	case n == r.max && !isNoReply(params[n-1]):
		return newError(InvalidNoReply, msgInvalidNoReply)
	case n > r.max:
		return newError(TooManyParameters, msgTooManyParameters)
	}
	return nil
}

func (p *Parser) validateKey(key string) error {
	if len(key) > p.maxKeyLength {
		return newError(KeyTooLong, fmt.Sprintf("Keys cannot exceed %d characters as length", p.maxKeyLength))
	}
	return nil
}
