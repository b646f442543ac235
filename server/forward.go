package server

import (
	"errors"
	"fmt"
	"io"

	"github.com/kommendorkapten/bhdns/wire"
	"github.com/semihalev/zlog/v2"
)

// ErrTimeout is returned when no upstream reply with the query's
// transaction ID arrives in time.
var ErrTimeout = errors.New("upstream timeout")

// exchange sends query upstream unmodified and waits for the reply
// carrying id. Replies with other IDs, left over from earlier queries,
// are discarded and the wait goes on with what remains of the timeout.
// The query is never retried.
func (s *Server) exchange(id uint16, query []byte) ([]byte, error) {
	n, err := s.forward.Write(query)
	if err != nil {
		return nil, fmt.Errorf("send upstream: %w", err)
	}
	if n != len(query) {
		return nil, fmt.Errorf("send upstream: %w", io.ErrShortWrite)
	}
	s.counters.forward(n)

	start := s.clock.Now()
	for {
		remaining := s.timeout - s.clock.Since(start)
		if remaining <= 0 {
			return nil, ErrTimeout
		}

		timer := s.clock.NewTimer(remaining)

		select {
		case b := <-s.replies:
			timer.Stop()
			s.counters.upstreamRx(len(b))

			h, _, err := wire.UnpackHeader(b)
			if err != nil {
				s.dropped("upstream", "Upstream reply shorter than header", "upstream", s.upstream.String(), "size", len(b))
				continue
			}

			if h.ID != id {
				zlog.Warn("Upstream reply id mismatch", "upstream", s.upstream.String(), "want", id, "got", h.ID)
				continue
			}

			return b, nil
		case <-timer.Chan():
			return nil, ErrTimeout
		}
	}
}
