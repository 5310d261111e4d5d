package fuse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned for values that do not fit in one byte.
var ErrInvalidValue = errors.New("fuse: invalid value")

// WriteRequest asks for one group to be written. A request without a value
// leaves the group unchanged.
type WriteRequest struct {
	Group   Group
	Value   uint8
	Present bool
}

// Set returns a request writing v to g.
func Set(g Group, v uint8) WriteRequest {
	return WriteRequest{Group: g, Value: v, Present: true}
}

// Omit returns a request that leaves g unchanged.
func Omit(g Group) WriteRequest {
	return WriteRequest{Group: g}
}

func (r WriteRequest) String() string {
	if !r.Present {
		return fmt.Sprintf("%s=unchanged", r.Group)
	}
	return fmt.Sprintf("%s=0x%02X", r.Group, r.Value)
}

// ParseByte parses a byte value written as 0xNN, 0bNNNNNNNN or decimal.
// Values outside 0..255 are rejected with ErrInvalidValue.
func ParseByte(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidValue)
	}

	base := 10
	digits := s
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, digits = 16, s[2:]
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		base, digits = 2, s[2:]
	case strings.HasPrefix(s, "$"):
		base, digits = 16, s[1:]
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return CheckByte(int(v))
}

// CheckByte narrows an integer to a byte, rejecting anything out of range.
func CheckByte(v int) (uint8, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%w: %d does not fit in one byte", ErrInvalidValue, v)
	}
	return uint8(v), nil
}
