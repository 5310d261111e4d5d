package fuse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTable(t *testing.T) {
	tests := []struct {
		group Group
		read  []byte
		write []byte
	}{
		{GroupLow, []byte{0x50, 0x00, 0x00}, []byte{0xAC, 0xA0, 0x00, 0x5A}},
		{GroupHigh, []byte{0x58, 0x08, 0x00}, []byte{0xAC, 0xA8, 0x00, 0x5A}},
		{GroupExtended, []byte{0x50, 0x08, 0x00}, []byte{0xAC, 0xA4, 0x00, 0x5A}},
		{GroupLock, []byte{0x58, 0x00, 0x00}, []byte{0xAC, 0xE0, 0x00, 0x5A}},
	}

	for _, tt := range tests {
		t.Run(tt.group.String(), func(t *testing.T) {
			assert.Equal(t, tt.read, ReadCommand(tt.group))
			assert.Equal(t, tt.write, WriteCommand(tt.group, 0x5A))
			assert.Equal(t, tt.write[:3], WritePrefix(tt.group))
		})
	}

	assert.Equal(t, [4]byte{0xAC, 0x53, 0x00, 0x00}, ProgrammingEnable)
	assert.Nil(t, ReadCommand(Group(9)))
	assert.Nil(t, WriteCommand(Group(9), 0))
	assert.Equal(t, []byte{0x30, 0x00, 0x02}, ReadSignatureCommand(SignaturePart))
}

func TestParseByte(t *testing.T) {
	tests := []struct {
		in      string
		want    uint8
		wantErr bool
	}{
		{in: "0xE2", want: 0xE2},
		{in: "0XFF", want: 0xFF},
		{in: "$D9", want: 0xD9},
		{in: "0b11111101", want: 0xFD},
		{in: "98", want: 98},
		{in: " 0x00 ", want: 0},
		{in: "0x100", wantErr: true},
		{in: "256", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "", wantErr: true},
		{in: "0xZZ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByte(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidValue))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteRequest(t *testing.T) {
	assert.Equal(t, "low=0xE2", Set(GroupLow, 0xE2).String())
	assert.Equal(t, "high=unchanged", Omit(GroupHigh).String())
	assert.False(t, Omit(GroupHigh).Present)

	_, err := CheckByte(300)
	assert.ErrorIs(t, err, ErrInvalidValue)
}
