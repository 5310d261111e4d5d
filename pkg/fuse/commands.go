package fuse

// Serial programming instructions, MSB first on the wire. Read commands are
// three bytes long; the fourth byte of the ISP frame is clocked while the
// response is received.
var (
	// ProgrammingEnable latches the target into serial programming mode while
	// its reset line is held low.
	ProgrammingEnable = [4]byte{0xAC, 0x53, 0x00, 0x00}

	readCommands = map[Group][3]byte{
		GroupLow:      {0x50, 0x00, 0x00},
		GroupHigh:     {0x58, 0x08, 0x00},
		GroupExtended: {0x50, 0x08, 0x00},
		GroupLock:     {0x58, 0x00, 0x00},
	}

	writePrefixes = map[Group][3]byte{
		GroupLow:      {0xAC, 0xA0, 0x00},
		GroupHigh:     {0xAC, 0xA8, 0x00},
		GroupExtended: {0xAC, 0xA4, 0x00},
		GroupLock:     {0xAC, 0xE0, 0x00},
	}
)

// Signature byte addresses. The target answers "Read signature byte" with
// the byte at the given address.
const (
	SignatureVendor = 0x00
	SignatureFamily = 0x01
	SignaturePart   = 0x02
)

// ReadCommand returns the read instruction for g.
func ReadCommand(g Group) []byte {
	cmd, ok := readCommands[g]
	if !ok {
		return nil
	}
	return cmd[:]
}

// WritePrefix returns the first three bytes of the write instruction for g.
func WritePrefix(g Group) []byte {
	prefix, ok := writePrefixes[g]
	if !ok {
		return nil
	}
	return prefix[:]
}

// WriteCommand returns the complete 4-byte write instruction: prefix, then
// value.
func WriteCommand(g Group, value uint8) []byte {
	prefix, ok := writePrefixes[g]
	if !ok {
		return nil
	}
	return []byte{prefix[0], prefix[1], prefix[2], value}
}

// ReadSignatureCommand returns the instruction reading signature byte addr.
func ReadSignatureCommand(addr uint8) []byte {
	return []byte{0x30, 0x00, addr & 0x03}
}
