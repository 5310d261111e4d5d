package fuse

// FieldReport is the decoded state of one field of a configuration byte.
type FieldReport struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	// RawValue holds the field's bits in place (b & Mask), not shifted.
	RawValue uint8 `json:"value"`
	Mask     uint8 `json:"mask"`
}

// Status renders Enabled for tables.
func (r FieldReport) Status() string {
	if r.Enabled {
		return "enabled"
	}
	return "disabled"
}

// Decode maps a raw configuration byte onto the given fields. The result has
// exactly one report per field, in the same order.
//
// An active-low field is enabled when all of its bits are cleared (AVR fuses
// are programmed by writing 0); an active-high field is enabled when all of
// its bits are set.
func Decode(b byte, fields []BitField) []FieldReport {
	reports := make([]FieldReport, len(fields))
	for i, f := range fields {
		raw := b & f.Mask
		enabled := raw == f.Mask
		if f.ActiveLow {
			enabled = raw == 0
		}
		reports[i] = FieldReport{
			Name:        f.Name,
			Description: f.Description,
			Enabled:     enabled,
			RawValue:    raw,
			Mask:        f.Mask,
		}
	}
	return reports
}
