package withdraw

import (
	"errors"
	"strings"
)

var ErrInvalidAddress = errors.New("invalid eCash address")

const (
	cashaddrPrefix  = "ecash"
	cashaddrCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
)

// ValidateAddress accepts a cashaddr with the ecash prefix (prefixless input
// is accepted too) and a valid checksum.
func ValidateAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" || (strings.ToLower(addr) != addr && strings.ToUpper(addr) != addr) {
		return ErrInvalidAddress
	}
	addr = strings.ToLower(addr)
	prefix, payload := cashaddrPrefix, addr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		prefix, payload = addr[:i], addr[i+1:]
	}
	if prefix != cashaddrPrefix || len(payload) < 42 {
		return ErrInvalidAddress
	}
	if payload[0] != 'q' && payload[0] != 'p' {
		return ErrInvalidAddress
	}

	values := make([]byte, 0, len(prefix)+1+len(payload))
	for i := 0; i < len(prefix); i++ {
		values = append(values, prefix[i]&0x1f)
	}
	values = append(values, 0)
	for i := 0; i < len(payload); i++ {
		v := strings.IndexByte(cashaddrCharset, payload[i])
		if v < 0 {
			return ErrInvalidAddress
		}
		values = append(values, byte(v))
	}
	if polymod(values) != 0 {
		return ErrInvalidAddress
	}
	return nil
}

func polymod(values []byte) uint64 {
	c := uint64(1)
	for _, d := range values {
		c0 := byte(c >> 35)
		c = ((c & 0x07ffffffff) << 5) ^ uint64(d)
		if c0&0x01 != 0 {
			c ^= 0x98f2bc8e61
		}
		if c0&0x02 != 0 {
			c ^= 0x79b76d99e2
		}
		if c0&0x04 != 0 {
			c ^= 0xf33e5fb3c4
		}
		if c0&0x08 != 0 {
			c ^= 0xae2eabe2a8
		}
		if c0&0x10 != 0 {
			c ^= 0x1e4f43e470
		}
	}
	return c ^ 1
}
