package deviceinfo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// deviceFile is the YAML form of a device definition file:
//
//	devices:
//	  - name: ATmega88PA
//	    signature: "1E 93 0F"
//	    fuses:
//	      low:
//	        - {name: CKDIV8, mask: 0x80, active_low: true}
type deviceFile struct {
	Devices []deviceEntry `yaml:"devices"`
}

type deviceEntry struct {
	Name         string                     `yaml:"name"`
	Family       string                     `yaml:"family,omitempty"`
	Description  string                     `yaml:"description,omitempty"`
	Signature    string                     `yaml:"signature"`
	DatasheetURL string                     `yaml:"datasheet,omitempty"`
	Fuses        map[string][]fuse.BitField `yaml:"fuses"`
}

// LoadError reports a device definition that could not be used.
type LoadError struct {
	File    string // empty for in-memory input
	Device  string // entry name, if known
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Device != "" {
		msg = e.Device + ": " + msg
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Load registers every device in a YAML document. Entries replace built-ins
// with the same signature. Nothing is registered if any entry is invalid.
func (db *DB) Load(data []byte) (int, error) {
	var file deviceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if len(file.Devices) == 0 {
		return 0, &LoadError{Message: "no devices defined"}
	}

	infos := make([]DeviceInfo, 0, len(file.Devices))
	for i, entry := range file.Devices {
		info, err := entry.info()
		if err != nil {
			name := entry.Name
			if name == "" {
				name = fmt.Sprintf("device #%d", i+1)
			}
			return 0, &LoadError{Device: name, Message: "invalid definition", Cause: err}
		}
		if err := info.validate(); err != nil {
			return 0, &LoadError{Device: info.Name, Message: "invalid definition", Cause: err}
		}
		infos = append(infos, info)
	}

	for _, info := range infos {
		_ = db.Register(info)
	}
	return len(infos), nil
}

// LoadFile is Load on the contents of path.
func (db *DB) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	n, err := db.Load(data)
	if le, ok := err.(*LoadError); ok {
		le.File = path
	}
	return n, err
}

// Marshal renders devices in the format Load reads.
func Marshal(infos []DeviceInfo) ([]byte, error) {
	var file deviceFile
	for _, info := range infos {
		entry := deviceEntry{
			Name:         info.Name,
			Family:       info.Family,
			Description:  info.Description,
			Signature:    info.Signature.String(),
			DatasheetURL: info.DatasheetURL,
			Fuses:        make(map[string][]fuse.BitField),
		}
		for g, fields := range info.Fuses {
			entry.Fuses[g.String()] = fields
		}
		file.Devices = append(file.Devices, entry)
	}
	return yaml.Marshal(&file)
}

func (e deviceEntry) info() (DeviceInfo, error) {
	if e.Name == "" {
		return DeviceInfo{}, fmt.Errorf("name is required")
	}
	sig, err := avr.ParseSignatureString(e.Signature)
	if err != nil {
		return DeviceInfo{}, err
	}

	fuses := make(map[fuse.Group][]fuse.BitField, len(e.Fuses))
	for key, fields := range e.Fuses {
		g, err := fuse.ParseGroup(key)
		if err != nil {
			return DeviceInfo{}, err
		}
		fuses[g] = fields
	}

	return DeviceInfo{
		Name:         e.Name,
		Family:       e.Family,
		Description:  e.Description,
		Signature:    sig,
		Fuses:        fuses,
		DatasheetURL: e.DatasheetURL,
	}, nil
}
