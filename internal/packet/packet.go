// Package packet serializes the tagged binary packet format: literal data,
// session-key packets, and the definite/partial body-length encodings that
// the streaming pipeline depends on.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Tag identifies a packet type.
type Tag uint8

const (
	TagPubKeyESK     Tag = 1
	TagSymKeyESK     Tag = 3
	TagCompressed    Tag = 8
	TagEncrypted     Tag = 9
	TagLiteral       Tag = 11
	TagEncryptedMDC  Tag = 18
	TagMDC           Tag = 19
)

// ErrPacketFormat is returned when a length or structural field cannot be
// legally encoded.
var ErrPacketFormat = errors.New("packet: cannot encode")

// MaxDeclaredLen is the largest body length representable in a length field.
const MaxDeclaredLen = uint64(0xFFFFFFFF)

// writeNewHeader emits a new-format CTB and definite length.
func writeNewHeader(w io.Writer, tag Tag, length uint64) error {
	if length > MaxDeclaredLen {
		return fmt.Errorf("%w: length %d overflows the length field", ErrPacketFormat, length)
	}

	buf := make([]byte, 1, 6)
	buf[0] = 0xC0 | byte(tag)
	buf = appendNewLength(buf, uint32(length))

	_, err := w.Write(buf)

	return err
}

// appendNewLength appends a new-format definite length (1, 2 or 5 octets).
func appendNewLength(buf []byte, length uint32) []byte {
	switch {
	case length < 192:
		return append(buf, byte(length))
	case length < 8384:
		length -= 192

		return append(buf, byte(length>>8)+192, byte(length))
	default:
		buf = append(buf, 0xFF)

		return binary.BigEndian.AppendUint32(buf, length)
	}
}

// writeOldHeader emits an old-format CTB. A negative length means
// indeterminate (length type 3), which old-format readers take as
// "everything to EOF".
func writeOldHeader(w io.Writer, tag Tag, length int64) error {
	if tag > 15 {
		return fmt.Errorf("%w: tag %d has no old-format encoding", ErrPacketFormat, tag)
	}

	ctb := 0x80 | byte(tag)<<2

	var buf []byte

	switch {
	case length < 0:
		buf = []byte{ctb | 3}
	case length < 0x100:
		buf = []byte{ctb, byte(length)}
	case length < 0x10000:
		buf = []byte{ctb | 1, 0, 0}
		binary.BigEndian.PutUint16(buf[1:], uint16(length))
	case uint64(length) <= MaxDeclaredLen:
		buf = []byte{ctb | 2, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(buf[1:], uint32(length))
	default:
		return fmt.Errorf("%w: length %d overflows the length field", ErrPacketFormat, length)
	}

	_, err := w.Write(buf)

	return err
}

// headerOverhead returns the number of octets a new-format header adds in
// front of a body of the given length.
func headerOverhead(length uint64) uint64 {
	switch {
	case length < 192:
		return 2
	case length < 8384:
		return 3
	default:
		return 6
	}
}

// oldHeaderOverhead is the old-format counterpart: CTB plus a 1, 2 or
// 4-octet length, keyed on the same boundaries as writeOldHeader.
func oldHeaderOverhead(length uint64) uint64 {
	switch {
	case length < 0x100:
		return 2
	case length < 0x10000:
		return 3
	default:
		return 5
	}
}
