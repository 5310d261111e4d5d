package deviceinfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

const mega88 = `
devices:
  - name: ATmega88PA
    family: megaAVR
    signature: "1E 93 0F"
    fuses:
      low:
        - {name: CKDIV8, mask: 0x80, active_low: true}
        - {name: CKSEL, mask: 0x0F, active_low: true}
      lock:
        - {name: LB, mask: 3, active_low: true}
`

func TestLoad(t *testing.T) {
	db := New()
	n, err := db.Load([]byte(mega88))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	info, ok := db.Lookup(avr.Signature{0x1E, 0x93, 0x0F})
	require.True(t, ok)
	assert.Equal(t, "ATmega88PA", info.Name)
	assert.Equal(t, "megaAVR", info.Family)
	assert.Equal(t, []fuse.BitField{
		{Name: "CKDIV8", Mask: 0x80, ActiveLow: true},
		{Name: "CKSEL", Mask: 0x0F, ActiveLow: true},
	}, info.Fuses[fuse.GroupLow])

	dev, ok := db.Device(info.Signature)
	require.True(t, ok)
	assert.Equal(t, []fuse.Group{fuse.GroupLow, fuse.GroupLock}, dev.Layout.Groups())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "devices: [\n"},
		{"empty", "devices: []\n"},
		{"bad signature", "devices:\n  - name: X\n    signature: \"1E 93\"\n"},
		{"bad group", "devices:\n  - name: X\n    signature: \"1E 93 0F\"\n    fuses:\n      upper:\n        - {name: A, mask: 1}\n"},
		{"no fields", "devices:\n  - name: X\n    signature: \"1E 93 0F\"\n"},
		{"no name", "devices:\n  - signature: \"1E 93 0F\"\n    fuses:\n      low:\n        - {name: A, mask: 1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := New()
			_, err := db.Load([]byte(tt.data))
			require.Error(t, err)

			var le *LoadError
			assert.True(t, errors.As(err, &le))
			assert.Empty(t, db.All())
		})
	}
}

func TestLoadIsAllOrNothing(t *testing.T) {
	data := mega88 + `  - name: Broken
    signature: "00 00 00"
    fuses:
      low:
        - {name: A, mask: 1}
`
	db := New()
	_, err := db.Load([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
	assert.Empty(t, db.All())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mega88), 0o600))

	db := Default()
	n, err := db.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := db.LookupName("ATmega88PA")
	assert.True(t, ok)

	_, err = db.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.File, "missing.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalRoundTripsBuiltins(t *testing.T) {
	data, err := Marshal(Default().All())
	require.NoError(t, err)

	db := New()
	n, err := db.Load(data)
	require.NoError(t, err)
	assert.Equal(t, len(Default().All()), n)

	want, _ := Default().Lookup(avr.Signature{0x1E, 0x90, 0x07})
	got, ok := db.Lookup(avr.Signature{0x1E, 0x90, 0x07})
	require.True(t, ok)
	assert.Equal(t, want, got)
}
