package wire

import (
	"net/netip"

	"github.com/miekg/dns"
)

const (
	// RecordASize is the encoded size of a compressed A record.
	RecordASize = 16

	// PointerFirstQuestion is a compression pointer to offset 12, the
	// name of the first question.
	PointerFirstQuestion uint16 = 0xc000 | HeaderSize

	pointerMask = 0xc0
	rrFixedLen  = 10 // type, class, ttl, rdlength
)

// RecordA is a synthesized A record whose owner name is a compression
// pointer.
type RecordA struct {
	Name     uint16
	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16
	Addr     [4]byte
}

// NewRecordA returns an IN A record for addr pointing at the first
// question. addr must be an IPv4 address.
func NewRecordA(addr netip.Addr, ttl uint32) RecordA {
	return RecordA{
		Name:     PointerFirstQuestion,
		Type:     dns.TypeA,
		Class:    dns.ClassINET,
		TTL:      ttl,
		RDLength: 4,
		Addr:     addr.As4(),
	}
}

// PackRecordA encodes rr into exactly RecordASize bytes.
func PackRecordA(rr RecordA) []byte {
	return rr.AppendTo(make([]byte, 0, RecordASize))
}

// AppendTo appends the wire form of rr to b.
func (rr RecordA) AppendTo(b []byte) []byte {
	start := len(b)
	b = append(b, make([]byte, RecordASize)...)

	c := NewCursor(b[start:])
	_ = c.WriteUint16(rr.Name)
	_ = c.WriteUint16(rr.Type)
	_ = c.WriteUint16(rr.Class)
	_ = c.WriteUint32(rr.TTL)
	_ = c.WriteUint16(rr.RDLength)
	_ = c.WriteBytes(rr.Addr[:])

	return b
}

// SkipRecord walks over one resource record at the start of b without
// interpreting it and returns its encoded length.
func SkipRecord(b []byte) (int, error) {
	c := NewCursor(b)
	if err := skipRecord(c); err != nil {
		return 0, err
	}
	return c.Offset(), nil
}

func skipRecord(c *Cursor) error {
	if err := skipName(c); err != nil {
		return err
	}
	if err := c.Skip(rrFixedLen - 2); err != nil {
		return err
	}
	rdlength, err := c.ReadUint16()
	if err != nil {
		return err
	}
	return c.Skip(int(rdlength))
}

// skipName steps over an owner name: a run of labels ending either in
// the root label or in a compression pointer.
func skipName(c *Cursor) error {
	total := 0
	for {
		n, err := c.ReadUint8()
		if err != nil {
			return err
		}

		switch {
		case n == 0:
			return nil
		case n&pointerMask == pointerMask:
			if _, err := c.ReadUint8(); err != nil {
				return ErrBadPointer
			}
			return nil
		case n > MaxLabelLen:
			// 0x40 and 0x80 prefixes are reserved.
			return ErrLabelTooLong
		}

		total += int(n) + 1
		if total+1 > MaxNameLen {
			return ErrNameTooLong
		}
		if err := c.Skip(int(n)); err != nil {
			return err
		}
	}
}
