package avr

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// VendorAtmel is the first signature byte of every Atmel/Microchip AVR.
const VendorAtmel = 0x1E

// Signature is the three device signature bytes read with `30 00 n`.
type Signature [3]byte

// ParseSignature splits a packed signature such as 0x1E950F.
func ParseSignature(raw uint32) Signature {
	return Signature{byte(raw >> 16), byte(raw >> 8), byte(raw)}
}

// ParseSignatureString accepts "1E 95 0F", "1e950f", "0x1E950F" and
// "1E:95:0F".
func ParseSignatureString(s string) (Signature, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	clean = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(clean)

	var sig Signature
	if len(clean) != 2*len(sig) {
		return sig, fmt.Errorf("invalid signature %q: want 3 bytes", s)
	}
	if _, err := hex.Decode(sig[:], []byte(clean)); err != nil {
		return sig, fmt.Errorf("invalid signature %q: %w", s, err)
	}
	return sig, nil
}

// Uint32 packs the signature as 0x00BBCCDD.
func (s Signature) Uint32() uint32 {
	return uint32(s[0])<<16 | uint32(s[1])<<8 | uint32(s[2])
}

// Vendor names the manufacturer from byte 0.
func (s Signature) Vendor() string {
	if s[0] == VendorAtmel {
		return "Atmel/Microchip"
	}
	return fmt.Sprintf("Unknown (0x%02X)", s[0])
}

// FlashSize decodes byte 1 (0x90+n means 1 KiB << n). It returns 0 when the
// byte is outside the known range.
func (s Signature) FlashSize() int {
	if s[1] < 0x90 || s[1] > 0x98 {
		return 0
	}
	return 1024 << (s[1] - 0x90)
}

// Valid reports whether a target answered at all. A floating MISO reads as
// all ones, a shorted one as all zeros.
func (s Signature) Valid() bool {
	return s != Signature{0x00, 0x00, 0x00} && s != Signature{0xFF, 0xFF, 0xFF}
}

func (s Signature) String() string {
	return fmt.Sprintf("%02X %02X %02X", s[0], s[1], s[2])
}

// MarshalText renders the signature as "1E 95 0F".
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the forms ParseSignatureString accepts.
func (s *Signature) UnmarshalText(text []byte) error {
	sig, err := ParseSignatureString(string(text))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}
