package avr

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// Catalog resolves a signature to a device description.
type Catalog interface {
	Device(sig Signature) (*isp.Device, bool)
}

// UnknownSignatureError reports a signature that answered but is not in the
// catalog.
type UnknownSignatureError struct {
	Signature Signature
}

func (e *UnknownSignatureError) Error() string {
	return fmt.Sprintf("no device with signature %s", e.Signature)
}

// Is lets errors.Is(err, isp.ErrDeviceNotFound) match.
func (e *UnknownSignatureError) Is(target error) bool {
	return target == isp.ErrDeviceNotFound
}

// SignatureIdentifier identifies the target by reading its signature bytes
// in a short programming session of its own.
type SignatureIdentifier struct {
	Port    isp.Port
	Catalog Catalog
	Options []isp.Option
}

// Identify enters programming mode, reads the signature, releases reset and
// looks the signature up.
func (si *SignatureIdentifier) Identify(ctx context.Context, target isp.Target) (*isp.Device, error) {
	sig, err := si.ReadSignature(ctx, target)
	if err != nil {
		return nil, err
	}
	if !sig.Valid() {
		return nil, fmt.Errorf("%w: no response from target (signature %s)", isp.ErrDeviceNotFound, sig)
	}
	dev, ok := si.Catalog.Device(sig)
	if !ok {
		return nil, &UnknownSignatureError{Signature: sig}
	}
	return dev, nil
}

// ReadSignature reads the raw signature without a catalog lookup.
func (si *SignatureIdentifier) ReadSignature(ctx context.Context, target isp.Target) (Signature, error) {
	spi, err := si.Port.SPI(target.Bus)
	if err != nil {
		return Signature{}, &isp.TransportError{Call: "port.SPI", Err: err}
	}
	reset, err := si.Port.ResetLine(target.ResetLine)
	if err != nil {
		return Signature{}, &isp.TransportError{Call: "port.ResetLine", Err: err}
	}

	sess := isp.NewSession(spi, reset, fuse.EmptyLayout(), target.BaudRate, si.Options...)
	if err := sess.EnterProgrammingMode(ctx); err != nil {
		_ = sess.ExitProgrammingMode()
		return Signature{}, err
	}
	raw, err := sess.ReadSignature(ctx)
	if exitErr := sess.ExitProgrammingMode(); err == nil {
		err = exitErr
	}
	if err != nil {
		return Signature{}, err
	}
	return Signature(raw), nil
}
