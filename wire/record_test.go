package wire

import (
	"net"
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PackRecordA(t *testing.T) {
	rr := NewRecordA(netip.MustParseAddr("10.1.2.3"), 3600)

	b := PackRecordA(rr)
	require.Len(t, b, RecordASize)
	assert.Equal(t, []byte{
		0xc0, 0x0c, // pointer to offset 12
		0x00, 0x01, // A
		0x00, 0x01, // IN
		0x00, 0x00, 0x0e, 0x10, // 3600
		0x00, 0x04,
		10, 1, 2, 3,
	}, b)
}

func Test_RecordADecodesWithLibrary(t *testing.T) {
	q := packQuery(t, "blocked.test", dns.TypeA)

	h, _, err := UnpackHeader(q)
	require.NoError(t, err)
	h.QR, h.RA, h.ANCount = 1, 1, 1

	b := h.AppendTo(nil)
	b = append(b, q[HeaderSize:]...)
	b = NewRecordA(netip.MustParseAddr("192.0.2.1"), 60).AppendTo(b)

	m := new(dns.Msg)
	require.NoError(t, m.Unpack(b))
	require.Len(t, m.Answer, 1)

	a, ok := m.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "blocked.test.", a.Hdr.Name)
	assert.Equal(t, uint32(60), a.Hdr.Ttl)
	assert.True(t, a.A.Equal(net.ParseIP("192.0.2.1")))
}

func Test_SkipRecord(t *testing.T) {
	mx := &dns.MX{
		Hdr:        dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeMX, Class: dns.ClassINET, Ttl: 300},
		Preference: 10,
		Mx:         "mail.example.com.",
	}

	b := make([]byte, dns.Len(mx))
	off, err := dns.PackRR(mx, b, 0, nil, false)
	require.NoError(t, err)

	n, err := SkipRecord(b[:off])
	require.NoError(t, err)
	assert.Equal(t, off, n)

	for i := 0; i < off; i++ {
		_, err := SkipRecord(b[:i])
		assert.Error(t, err, "truncated at %d", i)
	}
}

func Test_SkipRecordPointer(t *testing.T) {
	b := PackRecordA(NewRecordA(netip.MustParseAddr("127.0.0.1"), 1))

	n, err := SkipRecord(b)
	require.NoError(t, err)
	assert.Equal(t, RecordASize, n)

	_, err = SkipRecord([]byte{0xc0})
	assert.ErrorIs(t, err, ErrBadPointer)

	_, err = SkipRecord([]byte{0x40, 0})
	assert.ErrorIs(t, err, ErrLabelTooLong)
}
