package fuse

import (
	"errors"
	"fmt"
)

// MaxFieldsPerByte is the largest number of fields a single byte can carry.
const MaxFieldsPerByte = 8

// BitField is one documented function inside a fuse or lock byte.
type BitField struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Mask        uint8  `json:"mask" yaml:"mask"`
	ActiveLow   bool   `json:"active_low" yaml:"active_low"`
}

// ErrInvalidLayout is wrapped by every layout validation failure.
var ErrInvalidLayout = errors.New("fuse: invalid layout")

// ValidateFields checks the invariants of one byte's field list: between one
// and eight fields, named, with non-zero and pairwise disjoint masks.
func ValidateFields(fields []BitField) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidLayout)
	}
	if len(fields) > MaxFieldsPerByte {
		return fmt.Errorf("%w: %d fields, at most %d allowed", ErrInvalidLayout, len(fields), MaxFieldsPerByte)
	}

	var used uint8
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field with mask 0x%02X has no name", ErrInvalidLayout, f.Mask)
		}
		if f.Mask == 0 {
			return fmt.Errorf("%w: field %s has an empty mask", ErrInvalidLayout, f.Name)
		}
		if used&f.Mask != 0 {
			return fmt.Errorf("%w: field %s mask 0x%02X overlaps 0x%02X", ErrInvalidLayout, f.Name, f.Mask, used&f.Mask)
		}
		used |= f.Mask
	}
	return nil
}

// Layout describes which configuration bytes a device has and the fields of
// each. It is immutable once built.
type Layout struct {
	supported map[Group]struct{}
	fields    map[Group][]BitField
}

// NewLayout builds a layout from per-group field lists. Groups with an empty
// list are recorded as unsupported.
func NewLayout(fields map[Group][]BitField) (*Layout, error) {
	l := &Layout{
		supported: make(map[Group]struct{}),
		fields:    make(map[Group][]BitField),
	}
	for g, fs := range fields {
		if _, ok := groupNames[g]; !ok {
			return nil, fmt.Errorf("%w: unknown group %d", ErrInvalidLayout, g)
		}
		if len(fs) == 0 {
			continue
		}
		if err := ValidateFields(fs); err != nil {
			return nil, fmt.Errorf("%s: %w", g.Label(), err)
		}
		l.fields[g] = append([]BitField(nil), fs...)
		l.supported[g] = struct{}{}
	}
	return l, nil
}

// MustLayout is NewLayout for static tables; it panics on invalid input.
func MustLayout(fields map[Group][]BitField) *Layout {
	l, err := NewLayout(fields)
	if err != nil {
		panic(err)
	}
	return l
}

// EmptyLayout returns a layout that supports no group. It is used while the
// device is still unknown, e.g. during signature reads.
func EmptyLayout() *Layout {
	return &Layout{
		supported: make(map[Group]struct{}),
		fields:    make(map[Group][]BitField),
	}
}

// Supports reports whether the device has the given byte.
func (l *Layout) Supports(g Group) bool {
	if l == nil {
		return false
	}
	if _, ok := l.supported[g]; !ok {
		return false
	}
	return len(l.fields[g]) > 0
}

// Fields returns a copy of the field list for g, in documented order.
func (l *Layout) Fields(g Group) []BitField {
	if l == nil {
		return nil
	}
	return append([]BitField(nil), l.fields[g]...)
}

// Groups returns the supported groups in AllGroups order.
func (l *Layout) Groups() []Group {
	var groups []Group
	for _, g := range AllGroups {
		if l.Supports(g) {
			groups = append(groups, g)
		}
	}
	return groups
}
