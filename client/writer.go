package client

import (
	"io"
	"strconv"
	"unicode"

	"github.com/pior/memcached/internal/bufpool"
	"github.com/pior/memcached/protocol"
)

var requestBuffers = bufpool.New(1024)

// ValidateKey checks that key can be sent on a command line.
func ValidateKey(key string) error {
	if key == "" {
		return &InvalidKeyError{Message: "key is empty"}
	}
	if len(key) > protocol.MaxKeyLength {
		return &InvalidKeyError{Message: "key exceeds " + strconv.Itoa(protocol.MaxKeyLength) + " bytes"}
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &InvalidKeyError{Message: "key contains whitespace or control characters"}
		}
	}
	return nil
}

// ValidateCommand checks every key of cmd and that storage data fits on one line.
func ValidateCommand(cmd *protocol.Command) error {
	if cmd.Operation.IsRetrieval() {
		if len(cmd.Keys) == 0 {
			return &InvalidKeyError{Message: "no keys"}
		}
		for _, key := range cmd.Keys {
			if err := ValidateKey(key); err != nil {
				return err
			}
		}
		return nil
	}

	if err := ValidateKey(cmd.Key); err != nil {
		return err
	}
	for _, b := range cmd.Data {
		if b == '\n' {
			return &InvalidKeyError{Message: "data cannot contain a line feed"}
		}
	}
	return nil
}

// WriteRequest encodes cmd into a single write on w.
func WriteRequest(w io.Writer, cmd *protocol.Command) error {
	buf := requestBuffers.Get()
	defer requestBuffers.Put(buf)

	buf.Write(cmd.AppendFrame(buf.AvailableBuffer()))

	_, err := w.Write(buf.Bytes())
	return err
}
