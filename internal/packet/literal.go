package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Modes of the literal-data packet.
const (
	LiteralBinary = 'b'
	LiteralText   = 't'
)

// LiteralDescriptor carries the metadata of a literal-data packet. A zero
// Length means the size is unknown and the body is streamed.
type LiteralDescriptor struct {
	Name      string
	Timestamp uint32
	Mode      byte
	Length    uint32
}

// headerLen is the packet-body overhead ahead of the data: mode octet,
// name-length octet, name, 4-octet timestamp.
func (d *LiteralDescriptor) headerLen() uint64 {
	return 1 + 1 + uint64(len(d.Name)) + 4
}

// LiteralPacketLength returns the total on-the-wire length of the literal
// packet (header included), used as the declared datalen of an enclosing
// encrypted packet. The overhead must match the framing NewLiteralWriter
// will emit, so legacy selects the old-format header sizes. Fails when
// the result does not fit a length field.
func LiteralPacketLength(d *LiteralDescriptor, legacy bool) (uint64, error) {
	if len(d.Name) > 0xFF {
		return 0, fmt.Errorf("%w: literal name of %d bytes exceeds one octet", ErrPacketFormat, len(d.Name))
	}

	body := d.headerLen() + uint64(d.Length)
	if body > MaxDeclaredLen {
		return 0, fmt.Errorf("%w: literal packet of %d bytes overflows the length field", ErrPacketFormat, body)
	}

	if legacy {
		return oldHeaderOverhead(body) + body, nil
	}

	return headerOverhead(body) + body, nil
}

// NewLiteralWriter emits the literal-data packet header to w and returns a
// writer for the data. With a known length the packet declares it up front;
// otherwise the body uses streamed encoding. Close finishes the packet
// framing without closing w.
func NewLiteralWriter(w io.Writer, d *LiteralDescriptor, legacy bool) (io.WriteCloser, error) {
	if len(d.Name) > 0xFF {
		return nil, fmt.Errorf("%w: literal name of %d bytes exceeds one octet", ErrPacketFormat, len(d.Name))
	}

	length := int64(-1)
	if d.Length > 0 {
		length = int64(d.headerLen()) + int64(d.Length)
	}

	body, err := NewBody(w, TagLiteral, length, legacy)
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, 0, 6+len(d.Name))
	hdr = append(hdr, d.Mode, byte(len(d.Name)))
	hdr = append(hdr, d.Name...)
	hdr = binary.BigEndian.AppendUint32(hdr, d.Timestamp)

	if _, err := body.Write(hdr); err != nil {
		return nil, err
	}

	return body, nil
}
