package wire

import "fmt"

// Message is a decoded query or reply: the header, the question
// section, and the outcome of walking the remaining sections.
type Message struct {
	Header    Header
	Questions []Question

	// Consumed is the number of bytes covered by the declared sections.
	Consumed int

	// Truncated is set when the datagram ended before all declared
	// answer, authority and additional records were walked.
	Truncated bool
}

// Parse decodes the header and questions of b and walks the declared
// answer, authority and additional records. Errors in the header or
// question section are returned; a short record section only marks the
// message Truncated.
func Parse(b []byte) (*Message, error) {
	h, n, err := UnpackHeader(b)
	if err != nil {
		return nil, err
	}

	qs, qn, err := UnpackQuestions(h.QDCount, b[n:])
	if err != nil {
		return nil, fmt.Errorf("question section: %w", err)
	}

	m := &Message{Header: h, Questions: qs}

	c := NewCursor(b[n+qn:])
	records := int(h.ANCount) + int(h.NSCount) + int(h.ARCount)
	for i := 0; i < records; i++ {
		if err := skipRecord(c); err != nil {
			m.Truncated = true
			break
		}
	}
	m.Consumed = n + qn + c.Offset()

	return m, nil
}

// SizeMatches reports whether the declared sections cover exactly size bytes.
func (m *Message) SizeMatches(size int) bool {
	return !m.Truncated && m.Consumed == size
}

// Blockable reports whether the message is subject to blocklist policy:
// a standard query with exactly one IN A question.
func (m *Message) Blockable() bool {
	return m.Header.IsQuery() && len(m.Questions) == 1 && m.Questions[0].IsA()
}
