package memcached

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrame_Pipelined(t *testing.T) {
	input := "set key 1.1 0 4\r\n1234\r\n" +
		"get key\r\n" +
		"append key 4 [noreply]\r\n5678\r\n" +
		"bogus line\r\n" +
		"gets a b\r\n"
	r := bufio.NewReader(strings.NewReader(input))

	want := []string{
		"set key 1.1 0 4\r\n1234\r\n",
		"get key\r\n",
		"append key 4 [noreply]\r\n5678\r\n",
		"bogus line\r\n",
		"gets a b\r\n",
	}
	for _, w := range want {
		frame, err := ReadFrame(r, 0)
		require.NoError(t, err)
		assert.Equal(t, w, string(frame))
	}

	_, err := ReadFrame(r, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrame_LongLines(t *testing.T) {
	data := strings.Repeat("x", 10000)
	input := "set key 0 0 10000\r\n" + data + "\r\n"

	r := bufio.NewReaderSize(strings.NewReader(input), 16)
	frame, err := ReadFrame(r, 0)
	require.NoError(t, err)
	assert.Equal(t, input, string(frame))
}

func TestReadFrame_TooLarge(t *testing.T) {
	input := "set key 0 0 100\r\n" + strings.Repeat("x", 100) + "\r\n"

	_, err := ReadFrame(bufio.NewReader(strings.NewReader(input)), 64)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	frame, err := ReadFrame(bufio.NewReader(strings.NewReader(input)), len(input))
	require.NoError(t, err)
	assert.Equal(t, input, string(frame))
}

func TestReadFrame_Truncated(t *testing.T) {
	for _, input := range []string{
		"get key",
		"set key 0 0 4\r\n",
		"set key 0 0 4\r\nda",
	} {
		_, err := ReadFrame(bufio.NewReader(strings.NewReader(input)), 0)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "input %q", input)
	}
}
