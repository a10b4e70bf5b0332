package memcached

import (
	"bufio"
	"errors"
	"io"

	"github.com/pior/memcached/protocol"
)

// ErrFrameTooLarge is returned by ReadFrame when a frame exceeds the size limit.
var ErrFrameTooLarge = errors.New("memcached: frame too large")

// ReadFrame reads one complete frame from r: a command line, followed by a
// data line when the command is a storage operation. Lines end at the first
// '\n'; the parser rejects lines not terminated by "\r\n".
//
// maxSize bounds the whole frame in bytes, zero means no limit.
// io.EOF is returned only when r ends cleanly between frames.
func ReadFrame(r *bufio.Reader, maxSize int) ([]byte, error) {
	frame, err := readLine(r, nil, maxSize)
	if err != nil {
		return nil, err
	}

	op, ok := protocol.PeekOperation(frame)
	if !ok || !op.IsStorage() {
		return frame, nil
	}

	frame, err = readLine(r, frame, maxSize)
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return frame, err
}

func readLine(r *bufio.Reader, dst []byte, maxSize int) ([]byte, error) {
	start := len(dst)
	for {
		chunk, err := r.ReadSlice('\n')
		if maxSize > 0 && len(dst)+len(chunk) > maxSize {
			return nil, ErrFrameTooLarge
		}
		dst = append(dst, chunk...)

		switch {
		case err == nil:
			return dst, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(dst) > start:
			return nil, io.ErrUnexpectedEOF
		default:
			return nil, err
		}
	}
}
