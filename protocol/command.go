package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// Command is a validated client request.
//
// Fields are populated according to Operation:
//   - get, gets: Keys
//   - set, add, replace: Key, Flags, ExpTime, Bytes, Data, NoReply
//   - append, prepend: Key, Bytes, Data, NoReply
//   - cas: Key, Flags, ExpTime, Bytes, CasUnique, Data, NoReply
//
// Bytes always equals len(Data) for storage commands.
type Command struct {
	Operation Operation
	Key       string
	Keys      []string
	Data      []byte
	Flags     float64
	ExpTime   int64 // seconds, 0 means the cache maximum
	Bytes     int
	CasUnique string
	NoReply   bool
}

// field identifies a positional parameter of a storage command.
type field int

const (
	fieldKey field = iota
	fieldFlags
	fieldExpTime
	fieldBytes
	fieldCasUnique
)

// rule is the parameter contract for one storage operation.
// max is always min+1: the only optional parameter is the trailing no-reply marker.
type rule struct {
	min    int
	max    int
	fields []field
}

var storageRules = map[Operation]rule{
	OpSet:     {min: 4, max: 5, fields: []field{fieldKey, fieldFlags, fieldExpTime, fieldBytes}},
	OpAdd:     {min: 4, max: 5, fields: []field{fieldKey, fieldFlags, fieldExpTime, fieldBytes}},
	OpReplace: {min: 4, max: 5, fields: []field{fieldKey, fieldFlags, fieldExpTime, fieldBytes}},
	OpAppend:  {min: 2, max: 3, fields: []field{fieldKey, fieldBytes}},
	OpPrepend: {min: 2, max: 3, fields: []field{fieldKey, fieldBytes}},
	OpCas:     {min: 5, max: 6, fields: []field{fieldKey, fieldFlags, fieldExpTime, fieldBytes, fieldCasUnique}},
}

// FormatFlags renders client flags the way they are echoed in VALUE lines.
func FormatFlags(flags float64) string {
	return strconv.FormatFloat(flags, 'f', -1, 64)
}

// AppendFrame appends the wire representation of c to dst.
// It is the inverse of Parse for any valid command.
func (c *Command) AppendFrame(dst []byte) []byte {
	dst = append(dst, c.Operation...)

	if c.Operation.IsRetrieval() {
		for _, key := range c.Keys {
			dst = append(dst, ' ')
			dst = append(dst, key...)
		}
		return append(dst, CRLF...)
	}

	dst = append(dst, ' ')
	dst = append(dst, c.Key...)

	for _, f := range storageRules[c.Operation].fields[1:] {
		dst = append(dst, ' ')
		switch f {
		case fieldFlags:
			dst = strconv.AppendFloat(dst, c.Flags, 'f', -1, 64)
		case fieldExpTime:
			dst = strconv.AppendInt(dst, c.ExpTime, 10)
		case fieldBytes:
			dst = strconv.AppendInt(dst, int64(len(c.Data)), 10)
		case fieldCasUnique:
			dst = append(dst, c.CasUnique...)
		}
	}

	if c.NoReply {
		dst = append(dst, ' ')
		dst = append(dst, NoReplyMarker...)
	}

	dst = append(dst, CRLF...)
	dst = append(dst, c.Data...)
	return append(dst, CRLF...)
}

func parseFlags(token string) (float64, error) {
	if !isDecimal(token) {
		return 0, newError(InvalidFlags, msgFlagsNotNumber)
	}
	flags, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, newError(InvalidFlags, msgFlagsNotNumber)
	}
	if flags < 0 {
		return 0, newError(InvalidFlags, msgFlagsNegative)
	}
	// normalize -0
	return flags + 0, nil
}

// isDecimal matches [-]digits[.digits]. ParseFloat alone also takes
// exponents, hex floats, underscores and Inf.
func isDecimal(token string) bool {
	token = strings.TrimPrefix(token, "-")
	whole, frac, hasFrac := strings.Cut(token, ".")
	return allDigits(whole) && (!hasFrac || allDigits(frac))
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseExpTime(token string) (int64, error) {
	// ParseInt clamps out-of-range input, which the bounds checks below reject.
	expTime, err := strconv.ParseInt(token, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, newError(InvalidExpTime, msgExpTimeNotNumber)
	}
	if expTime < 0 {
		return 0, newError(InvalidExpTime, msgExpTimeNegative)
	}
	if expTime > MaxExpTime {
		return 0, newError(InvalidExpTime, msgExpTimeTooLarge)
	}
	return expTime, nil
}

func parseBytes(token string) (int, error) {
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, newError(InvalidBytes, msgBytesNotNumber)
	}
	if n < 0 {
		return 0, newError(InvalidBytes, msgBytesNegative)
	}
	return int(n), nil
}

func isNoReply(token string) bool {
	return token == NoReplyMarker
}
