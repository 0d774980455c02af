// Package empp encodes and decodes the action tag that the bot embeds in the
// EMPP section of every HP transfer it builds.
//
// Wire layout (byte-stable, read back by the history scanner):
//
//	protocol id (4) || version (1) || action code (1) || [subject id u32 LE]
//
// The subject id is present only for social actions that reference a chat
// message. Account-level actions (claim, respawn, withdraw) never carry one.
package empp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ProtocolID is the 4-byte LOKAD-style prefix of every tag.
var ProtocolID = [4]byte{'X', 'O', 'V', 'M'}

// Version is the only tag version this package writes or accepts.
const Version byte = 0x00

const (
	headerLen  = 6
	subjectLen = 4
)

var (
	ErrMissingSubject = errors.New("empp: action requires a subject id")
	ErrUnknownCode    = errors.New("empp: unknown action code")
)

// Code identifies the economic action a transaction represents.
type Code byte

const (
	CodeClaim         Code = 0x00
	CodeLike          Code = 0x01
	CodeDislike       Code = 0x02
	CodeDisliked      Code = 0x03
	CodeRespawn       Code = 0x04
	CodeWithdraw      Code = 0x05
	CodeBottleReply   Code = 0x06
	CodeBottleReplied Code = 0x07
	CodeChiliReply    Code = 0x08
)

var codeNames = map[Code]string{
	CodeClaim:         "CLAIM",
	CodeLike:          "LIKE",
	CodeDislike:       "DISLIKE",
	CodeDisliked:      "DISLIKED",
	CodeRespawn:       "RESPAWN",
	CodeWithdraw:      "WITHDRAW",
	CodeBottleReply:   "BOTTLE_REPLY",
	CodeBottleReplied: "BOTTLE_REPLIED",
	CodeChiliReply:    "CHILI_REPLY",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE_0x%02x", byte(c))
}

// Known reports whether c is one of the defined action codes.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// RequiresSubject reports whether tags for c carry a message id.
func (c Code) RequiresSubject() bool {
	switch c {
	case CodeClaim, CodeRespawn, CodeWithdraw:
		return false
	default:
		return true
	}
}

// Tag is a decoded action tag.
type Tag struct {
	Code       Code
	MsgID      uint32
	HasSubject bool
}

// Encode builds the tag bytes for code. The optional subject is appended only
// when the code requires one; for account-level codes it is dropped.
func Encode(code Code, subject ...uint32) ([]byte, error) {
	if !code.Known() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCode, byte(code))
	}
	if !code.RequiresSubject() {
		return header(code), nil
	}
	if len(subject) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSubject, code)
	}
	return appendSubject(header(code), subject[0]), nil
}

// Decode parses b. It returns false for anything that is not a complete tag
// of this protocol and version; it never panics on foreign data.
func Decode(b []byte) (Tag, bool) {
	if len(b) < headerLen {
		return Tag{}, false
	}
	if [4]byte(b[:4]) != ProtocolID || b[4] != Version {
		return Tag{}, false
	}
	t := Tag{Code: Code(b[5])}
	if !t.Code.Known() {
		return Tag{}, false
	}
	if len(b) >= headerLen+subjectLen {
		t.MsgID = binary.LittleEndian.Uint32(b[headerLen : headerLen+subjectLen])
		t.HasSubject = true
	}
	if t.Code.RequiresSubject() && !t.HasSubject {
		return Tag{}, false
	}
	return t, true
}

func header(code Code) []byte {
	b := make([]byte, headerLen, headerLen+subjectLen)
	copy(b, ProtocolID[:])
	b[4] = Version
	b[5] = byte(code)
	return b
}

func appendSubject(b []byte, id uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, id)
}
