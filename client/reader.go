package client

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pior/memcached/protocol"
)

// Pre-allocated byte slices for comparisons
var (
	crlfBytes         = []byte(protocol.CRLF)
	valuePrefix       = []byte(protocol.ValuePrefix + " ")
	endBytes          = []byte(protocol.EndMarker)
	errorGenericBytes = []byte(protocol.ErrorGeneric)
	clientErrorPrefix = []byte(protocol.ErrorClientPrefix + " ")
	serverErrorPrefix = []byte(protocol.ErrorServerPrefix + " ")
)

// Status is the first line of a storage reply.
type Status string

const (
	StatusStored    Status = "STORED"
	StatusNotStored Status = "NOT_STORED"
	StatusExists    Status = "EXISTS"
	StatusNotFound  Status = "NOT_FOUND"
	StatusEnd       Status = "END"
)

// Value is one VALUE block of a retrieval reply.
type Value struct {
	Key   string
	Flags float64
	Data  []byte
	CAS   string // set by gets only
}

// Response is a parsed server reply.
//
// Storage replies carry a Status. Retrieval replies carry the found Values
// and StatusEnd. Protocol errors (CLIENT_ERROR, SERVER_ERROR, ERROR) are
// reported in Error, not as a Go error.
type Response struct {
	Status Status
	Values []Value
	Error  error
}

// HasError reports whether the server replied with a protocol error.
func (r *Response) HasError() bool {
	return r.Error != nil
}

// ReadResponse reads one complete reply from r.
//
// Go errors returned indicate I/O or parsing failures:
//   - io.EOF: Connection closed
//   - ParseError: Malformed reply, connection should be closed
//   - Other I/O errors: Connection issues, connection should be closed
func ReadResponse(r *bufio.Reader) (*Response, error) {
	resp := &Response{}

	for {
		line, err := readLine(r)
		if err != nil {
			if len(resp.Values) > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		switch {
		case bytes.HasPrefix(line, valuePrefix):
			v, err := readValue(r, line)
			if err != nil {
				return nil, err
			}
			resp.Values = append(resp.Values, v)
			continue

		case bytes.Equal(line, endBytes):
			resp.Status = StatusEnd

		case bytes.HasPrefix(line, clientErrorPrefix):
			resp.Error = &ClientError{Message: string(line[len(clientErrorPrefix):])}

		case bytes.HasPrefix(line, serverErrorPrefix):
			resp.Error = &ServerError{Message: string(line[len(serverErrorPrefix):])}

		case bytes.Equal(line, errorGenericBytes):
			resp.Error = &GenericError{Message: protocol.ErrorGeneric}

		default:
			switch status := Status(line); status {
			case StatusStored, StatusNotStored, StatusExists, StatusNotFound:
				resp.Status = status
			default:
				return nil, &ParseError{Message: "unexpected reply " + strconv.Quote(string(line))}
			}
		}

		if len(resp.Values) > 0 && resp.Status != StatusEnd {
			return nil, &ParseError{Message: "value block not terminated by END"}
		}
		return resp, nil
	}
}

// readLine returns the next line without its CRLF terminator.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Line exceeds buffer, fall back to ReadBytes (allocates).
		// ReadSlice's result is overwritten by the next read.
		line = bytes.Clone(line)
		var rest []byte
		rest, err = r.ReadBytes('\n')
		line = append(line, rest...)
	}
	if err != nil {
		return nil, err
	}

	line, ok := bytes.CutSuffix(line, crlfBytes)
	if !ok {
		return nil, &ParseError{Message: "line not terminated by CRLF"}
	}
	return line, nil
}

// readValue parses VALUE <key> <flags> <bytes>[ [<cas>]] and reads the data block.
func readValue(r *bufio.Reader, line []byte) (Value, error) {
	fields := strings.Fields(string(line[len(valuePrefix):]))
	if len(fields) != 3 && len(fields) != 4 {
		return Value{}, &ParseError{Message: "malformed VALUE line"}
	}

	v := Value{Key: fields[0]}

	var err error
	v.Flags, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Value{}, &ParseError{Message: "invalid flags in VALUE line", Err: err}
	}

	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return Value{}, &ParseError{Message: "invalid size in VALUE line", Err: err}
	}
	if size < 0 {
		return Value{}, &ParseError{Message: "negative size in VALUE line"}
	}

	if len(fields) == 4 {
		token, ok := strings.CutPrefix(fields[3], "[")
		if ok {
			token, ok = strings.CutSuffix(token, "]")
		}
		if !ok || token == "" {
			return Value{}, &ParseError{Message: "malformed cas token in VALUE line"}
		}
		v.CAS = token
	}

	// Read data + CRLF together in single read
	data := make([]byte, size+2)
	if _, err := io.ReadFull(r, data); err != nil {
		return Value{}, &ParseError{Message: "failed to read data block", Err: err}
	}
	if !bytes.HasSuffix(data, crlfBytes) {
		return Value{}, &ParseError{Message: "invalid data block terminator"}
	}
	v.Data = data[:size]

	return v, nil
}
