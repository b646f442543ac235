// Package mock provides a scripted upstream resolver for tests.
package mock

import (
	"errors"
	"net"
	"sync"

	"github.com/miekg/dns"
)

// HandlerFunc returns the datagrams to send back for one query. Returning
// nothing simulates a lost answer.
type HandlerFunc func(query []byte) [][]byte

// Upstream is a UDP resolver on the loopback interface.
type Upstream struct {
	conn    *net.UDPConn
	handler HandlerFunc

	mu      sync.Mutex
	queries [][]byte

	wg sync.WaitGroup
}

// NewUpstream starts an upstream answering with handler.
func NewUpstream(handler HandlerFunc) (*Upstream, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}

	u := &Upstream{conn: conn, handler: handler}

	u.wg.Add(1)
	go u.serve()

	return u, nil
}

func (u *Upstream) serve() {
	defer u.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		q := append([]byte(nil), buf[:n]...)

		u.mu.Lock()
		u.queries = append(u.queries, q)
		u.mu.Unlock()

		for _, r := range u.handler(q) {
			if r == nil {
				continue
			}
			_, _ = u.conn.WriteToUDP(r, addr)
		}
	}
}

// Addr returns the address of the upstream.
func (u *Upstream) Addr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

// Queries returns a copy of every datagram received so far.
func (u *Upstream) Queries() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()

	return append([][]byte(nil), u.queries...)
}

// Close stops the upstream.
func (u *Upstream) Close() error {
	err := u.conn.Close()
	u.wg.Wait()
	return err
}

// Answer builds a reply to query with one A record for ip, or nil when
// query does not unpack.
func Answer(query []byte, ip string) []byte {
	req := new(dns.Msg)
	if err := req.Unpack(query); err != nil || len(req.Question) == 0 {
		return nil
	}

	msg := new(dns.Msg)
	msg.SetReply(req)
	msg.RecursionAvailable = true
	msg.Answer = append(msg.Answer, &dns.A{
		Hdr: dns.RR_Header{
			Name:   req.Question[0].Name,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    300,
		},
		A: net.ParseIP(ip),
	})

	b, err := msg.Pack()
	if err != nil {
		return nil
	}

	return b
}

// WithID returns a copy of reply carrying transaction id.
func WithID(reply []byte, id uint16) []byte {
	b := append([]byte(nil), reply...)
	if len(b) >= 2 {
		b[0], b[1] = byte(id>>8), byte(id)
	}
	return b
}
