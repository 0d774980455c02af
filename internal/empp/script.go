package empp

import (
	"encoding/binary"
	"errors"
)

const (
	OpReturn    byte = 0x6a
	OpReserved  byte = 0x50
	opPushData1 byte = 0x4c
	opPushData2 byte = 0x4d
	opPushData4 byte = 0x4e
)

var ErrNotEMPP = errors.New("empp: script is not an EMPP output")

// IsDataScript reports whether script is a data-only (OP_RETURN) output.
func IsDataScript(script []byte) bool {
	return len(script) > 0 && script[0] == OpReturn
}

// Script wraps payloads into an EMPP output script:
// OP_RETURN OP_RESERVED <push payload>...
func Script(payloads ...[]byte) []byte {
	out := []byte{OpReturn, OpReserved}
	for _, p := range payloads {
		out = appendPush(out, p)
	}
	return out
}

// Payloads returns every pushed payload of an EMPP script.
func Payloads(script []byte) ([][]byte, error) {
	if len(script) < 2 || script[0] != OpReturn || script[1] != OpReserved {
		return nil, ErrNotEMPP
	}
	var out [][]byte
	rest := script[2:]
	for len(rest) > 0 {
		p, n, err := readPush(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		rest = rest[n:]
	}
	return out, nil
}

// FindAction returns the first payload in script that decodes as one of our
// tags. Foreign payloads (e.g. the ALP token section) are skipped.
func FindAction(script []byte) (Tag, bool) {
	payloads, err := Payloads(script)
	if err != nil {
		return Tag{}, false
	}
	for _, p := range payloads {
		if t, ok := Decode(p); ok {
			return t, true
		}
	}
	return Tag{}, false
}

func appendPush(out, p []byte) []byte {
	switch n := len(p); {
	case n < int(opPushData1):
		out = append(out, byte(n))
	case n <= 0xff:
		out = append(out, opPushData1, byte(n))
	case n <= 0xffff:
		out = append(out, opPushData2)
		out = binary.LittleEndian.AppendUint16(out, uint16(n))
	default:
		out = append(out, opPushData4)
		out = binary.LittleEndian.AppendUint32(out, uint32(n))
	}
	return append(out, p...)
}

var errBadPush = errors.New("empp: malformed push")

func readPush(b []byte) (payload []byte, consumed int, err error) {
	op := b[0]
	var size, hdr int
	switch {
	case op > 0 && op < opPushData1:
		size, hdr = int(op), 1
	case op == opPushData1:
		if len(b) < 2 {
			return nil, 0, errBadPush
		}
		size, hdr = int(b[1]), 2
	case op == opPushData2:
		if len(b) < 3 {
			return nil, 0, errBadPush
		}
		size, hdr = int(binary.LittleEndian.Uint16(b[1:3])), 3
	case op == opPushData4:
		if len(b) < 5 {
			return nil, 0, errBadPush
		}
		size, hdr = int(binary.LittleEndian.Uint32(b[1:5])), 5
	default:
		// EMPP forbids empty pushes and non-push opcodes.
		return nil, 0, errBadPush
	}
	if size <= 0 || len(b) < hdr+size {
		return nil, 0, errBadPush
	}
	return b[hdr : hdr+size], hdr + size, nil
}
