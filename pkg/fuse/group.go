package fuse

import (
	"fmt"
	"strings"
)

// Group identifies one physical configuration byte of an AVR target.
type Group uint8

const (
	GroupLow Group = iota
	GroupHigh
	GroupExtended
	GroupLock
)

// AllGroups lists every group in the order they are read and written.
var AllGroups = []Group{GroupLow, GroupHigh, GroupExtended, GroupLock}

var groupNames = map[Group]string{
	GroupLow:      "low",
	GroupHigh:     "high",
	GroupExtended: "extended",
	GroupLock:     "lock",
}

var groupLabels = map[Group]string{
	GroupLow:      "Low fuse",
	GroupHigh:     "High fuse",
	GroupExtended: "Extended fuse",
	GroupLock:     "Lock bits",
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Group(%d)", g)
}

// Label returns the human-readable name used in reports.
func (g Group) Label() string {
	if label, ok := groupLabels[g]; ok {
		return label
	}
	return g.String()
}

// IsFuse reports whether g is one of the three fuse bytes.
func (g Group) IsFuse() bool {
	return g == GroupLow || g == GroupHigh || g == GroupExtended
}

// MarshalText implements encoding.TextMarshaler so groups render by name in
// JSON and YAML output.
func (g Group) MarshalText() ([]byte, error) {
	if _, ok := groupNames[g]; !ok {
		return nil, fmt.Errorf("fuse: invalid group %d", g)
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Group) UnmarshalText(text []byte) error {
	parsed, err := ParseGroup(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGroup accepts the canonical group names as well as the avrdude memory
// names (lfuse, hfuse, efuse, lock).
func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "lfuse", "low_fuse":
		return GroupLow, nil
	case "high", "hfuse", "high_fuse":
		return GroupHigh, nil
	case "extended", "ext", "efuse", "extended_fuse":
		return GroupExtended, nil
	case "lock", "lockbits", "lock_bits":
		return GroupLock, nil
	default:
		return 0, fmt.Errorf("fuse: unknown group %q", s)
	}
}
