// Package wire packs and unpacks the parts of RFC 1035 DNS messages the
// proxy needs: the fixed header, the question section and synthesized
// A records. Forwarded traffic is relayed untouched; the remaining
// sections are only walked to validate their declared counts.
package wire

import (
	"fmt"

	"github.com/miekg/dns"
)

// HeaderSize is the size of the fixed DNS header.
const HeaderSize = 12

// Header is the fixed message header, RFC 1035 section 4.1.1.
type Header struct {
	ID uint16

	QR     uint8 // 1 bit
	Opcode uint8 // 4 bits
	AA     uint8 // 1 bit
	TC     uint8 // 1 bit
	RD     uint8 // 1 bit
	RA     uint8 // 1 bit
	Z      uint8 // 1 bit, reserved
	AD     uint8 // 1 bit
	CD     uint8 // 1 bit
	Rcode  uint8 // 4 bits

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// UnpackHeader decodes the header at the start of b and returns the
// number of bytes consumed.
func UnpackHeader(b []byte) (Header, int, error) {
	var h Header

	if len(b) < HeaderSize {
		return h, 0, ErrShortHeader
	}

	c := NewCursor(b)
	if err := h.unpack(c); err != nil {
		return h, 0, err
	}

	return h, c.Offset(), nil
}

func (h *Header) unpack(c *Cursor) error {
	var (
		err    error
		f1, f2 uint8
	)

	if h.ID, err = c.ReadUint16(); err != nil {
		return err
	}
	if f1, err = c.ReadUint8(); err != nil {
		return err
	}
	if f2, err = c.ReadUint8(); err != nil {
		return err
	}

	h.QR = f1 >> 7 & 0x1
	h.Opcode = f1 >> 3 & 0xf
	h.AA = f1 >> 2 & 0x1
	h.TC = f1 >> 1 & 0x1
	h.RD = f1 & 0x1

	h.RA = f2 >> 7 & 0x1
	h.Z = f2 >> 6 & 0x1
	h.AD = f2 >> 5 & 0x1
	h.CD = f2 >> 4 & 0x1
	h.Rcode = f2 & 0xf

	for _, p := range []*uint16{&h.QDCount, &h.ANCount, &h.NSCount, &h.ARCount} {
		if *p, err = c.ReadUint16(); err != nil {
			return err
		}
	}

	return nil
}

// PackHeader encodes h into a new 12 byte slice. Flag fields are
// masked to their bit widths.
func PackHeader(h Header) []byte {
	return h.AppendTo(make([]byte, 0, HeaderSize))
}

// AppendTo appends the wire form of h to b.
func (h Header) AppendTo(b []byte) []byte {
	start := len(b)
	b = append(b, make([]byte, HeaderSize)...)

	// The slice was just grown by HeaderSize, none of these can fail.
	c := NewCursor(b[start:])
	_ = c.WriteUint16(h.ID)
	_ = c.WriteUint8(h.QR&0x1<<7 | h.Opcode&0xf<<3 | h.AA&0x1<<2 | h.TC&0x1<<1 | h.RD&0x1)
	_ = c.WriteUint8(h.RA&0x1<<7 | h.Z&0x1<<6 | h.AD&0x1<<5 | h.CD&0x1<<4 | h.Rcode&0xf)
	_ = c.WriteUint16(h.QDCount)
	_ = c.WriteUint16(h.ANCount)
	_ = c.WriteUint16(h.NSCount)
	_ = c.WriteUint16(h.ARCount)

	return b
}

// IsQuery reports whether h describes a standard query.
func (h Header) IsQuery() bool {
	return h.QR == 0 && h.Opcode == dns.OpcodeQuery
}

// String returns a short human readable form of the header, for debug logs.
func (h Header) String() string {
	return fmt.Sprintf("id=%d qr=%d opcode=%d aa=%d tc=%d rd=%d ra=%d z=%d ad=%d cd=%d rcode=%d qd=%d an=%d ns=%d ar=%d",
		h.ID, h.QR, h.Opcode, h.AA, h.TC, h.RD, h.RA, h.Z, h.AD, h.CD, h.Rcode,
		h.QDCount, h.ANCount, h.NSCount, h.ARCount)
}
