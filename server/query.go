package server

import (
	"fmt"
	"net"

	"github.com/kommendorkapten/bhdns/wire"
	"github.com/semihalev/zlog/v2"
)

// serveQuery handles one client datagram: it is answered from the
// blocklist, relayed upstream, or dropped.
func (s *Server) serveQuery(p packet) {
	s.counters.downstreamRx(len(p.data))

	if !s.access.Allowed(p.addr.IP) {
		droppedTotal.WithLabelValues("accesslist").Inc()
		zlog.Debug("Client not in access list", "client", p.addr.String())
		return
	}

	if len(p.data) < wire.HeaderSize {
		s.dropped("short", "Query shorter than header", "client", p.addr.String(), "size", len(p.data))
		return
	}

	m, err := wire.Parse(p.data)
	if err != nil {
		s.dropped("malformed", "Malformed query", "client", p.addr.String(), "error", err.Error())
		return
	}

	if !m.SizeMatches(len(p.data)) {
		if m.Header.AD == 0 {
			s.dropped("size", "Query size does not match its sections", "client", p.addr.String(),
				"size", len(p.data), "consumed", m.Consumed)
			return
		}
		zlog.Debug("Query size mismatch tolerated", "client", p.addr.String(),
			"size", len(p.data), "consumed", m.Consumed)
	}

	var reply []byte

	if s.blocked(m) {
		if reply, err = s.sinkholeReply(m); err != nil {
			zlog.Error("Blocked reply failed", "client", p.addr.String(), "error", err.Error())
			return
		}
		s.counters.block()

		zlog.Debug("Query blocked", "client", p.addr.String(), "name", m.Questions[0].Name())
	} else {
		if reply, err = s.exchange(m.Header.ID, p.data); err != nil {
			droppedTotal.WithLabelValues("upstream").Inc()
			zlog.Warn("Forward query failed", "client", p.addr.String(), "id", m.Header.ID, "error", err.Error())
			return
		}
	}

	s.reply(p.addr, reply)
}

// blocked applies the blocklist policy. Only standard queries with one
// IN A question are subject to it; everything else is relayed.
func (s *Server) blocked(m *wire.Message) bool {
	if !m.Blockable() {
		return false
	}

	labels := m.Questions[0].Labels
	return s.blocklist.Match(labels) && !s.whitelist.Match(labels)
}

// sinkholeReply builds the answer for a blocked query: the question
// echoed back with one A record for the sinkhole address.
func (s *Server) sinkholeReply(m *wire.Message) ([]byte, error) {
	h := m.Header
	h.QR = 1
	h.AA = 0
	h.RA = 1
	h.AD = 0
	h.Rcode = 0
	h.QDCount = 1
	h.ANCount = 1
	h.NSCount = 0
	h.ARCount = 0

	b := make([]byte, 0, wire.HeaderSize+wire.MaxNameLen+4+wire.RecordASize)
	b = h.AppendTo(b)

	b, err := m.Questions[0].AppendTo(b)
	if err != nil {
		return nil, fmt.Errorf("pack question: %w", err)
	}

	return wire.NewRecordA(s.sinkhole, s.ttl).AppendTo(b), nil
}

func (s *Server) reply(addr *net.UDPAddr, b []byte) {
	n, err := s.listen.WriteToUDP(b, addr)
	if err != nil {
		zlog.Error("Reply to client failed", "client", addr.String(), "error", err.Error())
		return
	}

	s.counters.downstreamTx(n)
}
