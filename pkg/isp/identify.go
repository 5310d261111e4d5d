package isp

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// Device is what identification knows about the target.
type Device struct {
	Name      string
	Signature [3]byte
	Layout    *fuse.Layout
}

// SignatureString renders the signature as "1E 95 0F".
func (d *Device) SignatureString() string {
	return fmt.Sprintf("%02X %02X %02X", d.Signature[0], d.Signature[1], d.Signature[2])
}

// Identifier looks up the device wired to a target. A nil device with a nil
// error, or an error wrapping ErrDeviceNotFound, both mean no device.
type Identifier interface {
	Identify(ctx context.Context, target Target) (*Device, error)
}

// IdentifierFunc adapts a function to the Identifier interface.
type IdentifierFunc func(ctx context.Context, target Target) (*Device, error)

// Identify calls f.
func (f IdentifierFunc) Identify(ctx context.Context, target Target) (*Device, error) {
	return f(ctx, target)
}

// StaticIdentifier always reports the same device. Useful when the part is
// known and no signature read is wanted.
func StaticIdentifier(dev *Device) Identifier {
	return IdentifierFunc(func(context.Context, Target) (*Device, error) {
		return dev, nil
	})
}
