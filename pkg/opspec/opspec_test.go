package opspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Operation
	}{
		{"lfuse:w:0xE2:m", Operation{Group: fuse.GroupLow, Kind: Write, Value: 0xE2, HasValue: true}},
		{"hfuse:w:0xD9", Operation{Group: fuse.GroupHigh, Kind: Write, Value: 0xD9, HasValue: true}},
		{"efuse:w:0b11111101:m", Operation{Group: fuse.GroupExtended, Kind: Write, Value: 0xFD, HasValue: true}},
		{"lock:w:252:m", Operation{Group: fuse.GroupLock, Kind: Write, Value: 0xFC, HasValue: true}},
		{"lock:v:$FC", Operation{Group: fuse.GroupLock, Kind: Verify, Value: 0xFC, HasValue: true}},
		{"high:r", Operation{Group: fuse.GroupHigh, Kind: Read}},
		{"LFUSE:W:0xe2:M", Operation{Group: fuse.GroupLow, Kind: Write, Value: 0xE2, HasValue: true}},
		{" lfuse : r ", Operation{Group: fuse.GroupLow, Kind: Read}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"lfuse",
		"lfuse:",
		"flash:w:0x00:m",
		"lfuse:x:0x00",
		"lfuse:w",
		"lfuse:r:0xE2",
		"lfuse:w:0xE2:i",
		"lfuse:w:0xE2:m:extra",
		"lfuse:w:E2",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseRejectsOutOfRangeValues(t *testing.T) {
	_, err := Parse("lfuse:w:0x100:m")
	assert.ErrorIs(t, err, fuse.ErrInvalidValue)

	_, err = Parse("lfuse:w:300")
	assert.ErrorIs(t, err, fuse.ErrInvalidValue)
}

func TestParseAll(t *testing.T) {
	ops, err := ParseAll([]string{"lock:w:0xFC:m", "lfuse:w:0xE2:m", "lfuse:r"})
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, []fuse.WriteRequest{
		fuse.Set(fuse.GroupLow, 0xE2),
		fuse.Set(fuse.GroupLock, 0xFC),
	}, Writes(ops))

	_, err = ParseAll([]string{"lfuse:w:0xE2", "low:w:0x62"})
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "lfuse:w:0xE2:m", Operation{Group: fuse.GroupLow, Kind: Write, Value: 0xE2, HasValue: true}.String())
	assert.Equal(t, "efuse:r", Operation{Group: fuse.GroupExtended, Kind: Read}.String())
	assert.Equal(t, fuse.Omit(fuse.GroupHigh), Operation{Group: fuse.GroupHigh, Kind: Verify, Value: 1, HasValue: true}.Request())
}
