package wire

import (
	"strings"

	"github.com/miekg/dns"
)

const (
	// MaxLabelLen is the largest label length octet allowed.
	MaxLabelLen = 63

	// MaxNameLen is the largest encoded name, length octets included.
	MaxNameLen = 255
)

// Question is one entry of the question section. Labels are kept in
// wire order, most specific first.
type Question struct {
	Labels []string
	Qtype  uint16
	Qclass uint16
}

// Name returns the dotted form of the question name, without the root dot.
func (q Question) Name() string {
	return strings.Join(q.Labels, ".")
}

// IsA reports whether q asks for an IN A record.
func (q Question) IsA() bool {
	return q.Qtype == dns.TypeA && q.Qclass == dns.ClassINET
}

// minQuestionLen is a root name followed by qtype and qclass.
const minQuestionLen = 5

// UnpackQuestions decodes qdcount questions from the start of b and
// returns them with the number of bytes consumed. A section holding
// fewer well formed questions than declared is an error; no partial
// result is returned.
func UnpackQuestions(qdcount uint16, b []byte) ([]Question, int, error) {
	if qdcount == 0 {
		return nil, 0, nil
	}

	c := NewCursor(b)
	// a question takes at least 5 bytes, qdcount alone is not trusted
	qs := make([]Question, 0, min(int(qdcount), len(b)/minQuestionLen))

	for i := 0; i < int(qdcount); i++ {
		q, err := unpackQuestion(c)
		if err != nil {
			return nil, 0, err
		}
		qs = append(qs, q)
	}

	return qs, c.Offset(), nil
}

func unpackQuestion(c *Cursor) (Question, error) {
	var (
		q   Question
		err error
	)

	if q.Labels, err = unpackLabels(c); err != nil {
		return Question{}, err
	}
	if q.Qtype, err = c.ReadUint16(); err != nil {
		return Question{}, err
	}
	if q.Qclass, err = c.ReadUint16(); err != nil {
		return Question{}, err
	}

	return q, nil
}

// unpackLabels reads length prefixed labels up to the zero terminator.
func unpackLabels(c *Cursor) ([]string, error) {
	var (
		labels []string
		total  int
	)

	for {
		n, err := c.ReadUint8()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		if n > MaxLabelLen {
			return nil, ErrLabelTooLong
		}

		total += int(n) + 1
		if total+1 > MaxNameLen {
			return nil, ErrNameTooLong
		}

		p, err := c.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		labels = append(labels, string(p))
	}

	return labels, nil
}

// PackQuestions re-encodes qs.
func PackQuestions(qs []Question) ([]byte, error) {
	var b []byte

	for _, q := range qs {
		var err error
		if b, err = q.AppendTo(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// AppendTo appends the wire form of q to b.
func (q Question) AppendTo(b []byte) ([]byte, error) {
	size := 1 + 4
	for _, l := range q.Labels {
		if l == "" {
			return nil, ErrEmptyLabel
		}
		if len(l) > MaxLabelLen {
			return nil, ErrLabelTooLong
		}
		size += len(l) + 1
	}
	if size-4 > MaxNameLen {
		return nil, ErrNameTooLong
	}

	start := len(b)
	b = append(b, make([]byte, size)...)
	c := NewCursor(b[start:])

	for _, l := range q.Labels {
		if err := c.WriteUint8(uint8(len(l))); err != nil {
			return nil, err
		}
		if err := c.WriteBytes([]byte(l)); err != nil {
			return nil, err
		}
	}
	if err := c.WriteUint8(0); err != nil {
		return nil, err
	}
	if err := c.WriteUint16(q.Qtype); err != nil {
		return nil, err
	}
	if err := c.WriteUint16(q.Qclass); err != nil {
		return nil, err
	}

	return b, nil
}
