package deviceinfo

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// DB is a signature-keyed device database. It is safe for concurrent use.
type DB struct {
	mu      sync.RWMutex
	devices map[avr.Signature]DeviceInfo
}

// builtin is filled by the per-family init functions.
var builtin = New()

// New returns an empty database.
func New() *DB {
	return &DB{devices: make(map[avr.Signature]DeviceInfo)}
}

// Default returns a copy of the built-in database, safe to extend.
func Default() *DB {
	db := New()
	for _, info := range builtin.All() {
		db.devices[info.Signature] = info
	}
	return db
}

func register(info DeviceInfo) {
	if err := builtin.Register(info); err != nil {
		panic(err)
	}
}

// Register adds or replaces a device. Its field tables are validated first.
func (db *DB) Register(info DeviceInfo) error {
	if err := info.validate(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.devices[info.Signature] = info
	return nil
}

func (d DeviceInfo) validate() error {
	if d.Name == "" {
		return fmt.Errorf("device with signature %s has no name", d.Signature)
	}
	if !d.Signature.Valid() {
		return fmt.Errorf("%s: invalid signature %s", d.Name, d.Signature)
	}
	layout, err := d.Layout()
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	if len(layout.Groups()) == 0 {
		return fmt.Errorf("%s: %w: no fuse or lock fields", d.Name, fuse.ErrInvalidLayout)
	}
	return nil
}

// Lookup returns the device with the given signature.
func (db *DB) Lookup(sig avr.Signature) (DeviceInfo, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	info, ok := db.devices[sig]
	return info, ok
}

// LookupName finds a device by name, ignoring case.
func (db *DB) LookupName(name string) (DeviceInfo, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, info := range db.devices {
		if strings.EqualFold(info.Name, name) {
			return info, true
		}
	}
	return DeviceInfo{}, false
}

// All returns every device sorted by name.
func (db *DB) All() []DeviceInfo {
	db.mu.RLock()
	out := make([]DeviceInfo, 0, len(db.devices))
	for _, info := range db.devices {
		out = append(out, info)
	}
	db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Device implements avr.Catalog.
func (db *DB) Device(sig avr.Signature) (*isp.Device, bool) {
	info, ok := db.Lookup(sig)
	if !ok {
		return nil, false
	}
	dev, err := info.Device()
	if err != nil {
		return nil, false
	}
	return dev, true
}

// Device converts the entry into what the programmer consumes.
func (d DeviceInfo) Device() (*isp.Device, error) {
	layout, err := d.Layout()
	if err != nil {
		return nil, err
	}
	return &isp.Device{Name: d.Name, Signature: d.Signature, Layout: layout}, nil
}
