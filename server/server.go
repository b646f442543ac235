// Package server runs the proxy: one dispatch loop owning the client,
// stats and upstream sockets, the blocklist and the counters.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kommendorkapten/bhdns/accesslist"
	"github.com/kommendorkapten/bhdns/blocklist"
	"github.com/kommendorkapten/bhdns/config"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/time/rate"
)

const (
	// bufSize holds the largest UDP payload, replies are relayed whole.
	bufSize = 65535

	defaultTimeout = 5 * time.Second
	defaultTTL     = 3600
)

type packet struct {
	data []byte
	addr *net.UDPAddr
}

// Server type
type Server struct {
	listen  *net.UDPConn
	stats   *net.UDPConn
	forward *net.UDPConn

	upstream *net.UDPAddr
	sinkhole netip.Addr
	ttl      uint32
	timeout  time.Duration
	headless bool

	blocklist *blocklist.Blocklist
	whitelist *blocklist.Blocklist
	access    *accesslist.AccessList

	clock   clockwork.Clock
	limiter *rate.Limiter

	// replies carries datagrams read from the upstream socket.
	replies chan []byte

	counters Stats
}

// New opens the upstream, client and stats sockets described by cfg.
// bl decides which names are blocked and wl, which may be nil, which
// names never are. A failure closes whatever was already opened.
func New(cfg *config.Config, bl, wl *blocklist.Blocklist) (*Server, error) {
	s := &Server{
		ttl:       cfg.TTL,
		timeout:   cfg.Timeout.Duration,
		blocklist: bl,
		whitelist: wl,
		access:    accesslist.New(cfg.AccessList),
		clock:     clockwork.NewRealClock(),
		limiter:   rate.NewLimiter(rate.Every(time.Second), 10),
		replies:   make(chan []byte, 16),
	}

	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.ttl == 0 {
		s.ttl = defaultTTL
	}

	var err error

	if s.sinkhole, err = netip.ParseAddr(cfg.Sinkhole); err != nil || !s.sinkhole.Is4() {
		return nil, fmt.Errorf("invalid sinkhole address %q", cfg.Sinkhole)
	}

	if s.upstream, err = net.ResolveUDPAddr("udp4", cfg.UpstreamAddr()); err != nil {
		return nil, fmt.Errorf("resolve upstream: %w", err)
	}

	if s.forward, err = net.DialUDP("udp4", nil, s.upstream); err != nil {
		return nil, fmt.Errorf("open upstream socket: %w", err)
	}

	if s.listen, err = listen(cfg.ListenAddr()); err != nil {
		s.close()
		return nil, fmt.Errorf("open listen socket: %w", err)
	}

	if s.stats, err = listen(cfg.StatsAddr()); err != nil {
		s.close()
		return nil, fmt.Errorf("open stats socket: %w", err)
	}

	return s, nil
}

func listen(addr string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenUDP("udp4", laddr)
}

// SetHeadless disables the statistics summary printed on stop.
func (s *Server) SetHeadless(headless bool) { s.headless = headless }

// Addr returns the address the DNS socket is bound to.
func (s *Server) Addr() net.Addr { return s.listen.LocalAddr() }

// StatsAddr returns the address the stats socket is bound to.
func (s *Server) StatsAddr() net.Addr { return s.stats.LocalAddr() }

// Stats returns a copy of the counters. It must not be called while
// Run is active.
func (s *Server) Stats() Stats { return s.counters }

// Run serves queries and stats requests until ctx is done, then closes
// the sockets. The exchange in progress when ctx is cancelled always
// finishes first.
func (s *Server) Run(ctx context.Context) error {
	var (
		queries = make(chan packet)
		stats   = make(chan packet)
		done    = make(chan struct{})
		wg      sync.WaitGroup
	)

	wg.Add(3)
	go func() { defer wg.Done(); receive(s.listen, queries, done) }()
	go func() { defer wg.Done(); receive(s.stats, stats, done) }()
	go func() { defer wg.Done(); s.receiveUpstream(done) }()

	zlog.Info("DNS server listening...", "net", "udp", "addr", s.listen.LocalAddr().String(),
		"upstream", s.upstream.String())
	zlog.Info("Stats server listening...", "net", "udp", "addr", s.stats.LocalAddr().String())

	for {
		select {
		case <-ctx.Done():
			close(done)
			s.close()
			wg.Wait()

			s.summary()

			return nil
		case p := <-queries:
			s.safely(s.serveQuery, p)
		case p := <-stats:
			s.safely(s.serveStats, p)
		}
	}
}

// receive hands each datagram read from conn to the dispatch loop.
func receive(conn *net.UDPConn, out chan<- packet, done <-chan struct{}) {
	buf := make([]byte, bufSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			zlog.Warn("Socket read failed", "addr", conn.LocalAddr().String(), "error", err.Error())
			continue
		}

		select {
		case out <- packet{data: bytes.Clone(buf[:n]), addr: addr}:
		case <-done:
			return
		}
	}
}

func (s *Server) receiveUpstream(done <-chan struct{}) {
	buf := make([]byte, bufSize)
	for {
		n, err := s.forward.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// connection refused surfaces here when the upstream port is closed
			zlog.Debug("Upstream read failed", "upstream", s.upstream.String(), "error", err.Error())
			continue
		}

		select {
		case s.replies <- bytes.Clone(buf[:n]):
		case <-done:
			return
		}
	}
}

func (s *Server) serveStats(p packet) {
	if !s.access.Allowed(p.addr.IP) || !isStatsRequest(p.data) {
		return
	}

	if _, err := s.stats.WriteToUDP([]byte(s.counters.String()), p.addr); err != nil {
		zlog.Error("Stats reply failed", "client", p.addr.String(), "error", err.Error())
	}
}

// safely runs fn on p, a panic drops the datagram instead of the loop.
func (s *Server) safely(fn func(packet), p packet) {
	defer func() {
		if r := recover(); r != nil {
			droppedTotal.WithLabelValues("panic").Inc()

			zlog.Error("Recovered in dispatch", "recover", r, "client", p.addr.String())

			_, _ = os.Stderr.WriteString(fmt.Sprintf("panic: %v\n\n", r))
			debug.PrintStack()
		}
	}()

	fn(p)
}

// dropped counts a datagram dropped for reason and logs it. Logging is
// rate limited, the datagrams may be adversarial.
func (s *Server) dropped(reason, msg string, args ...any) {
	droppedTotal.WithLabelValues(reason).Inc()

	if s.limiter.Allow() {
		zlog.Warn(msg, args...)
	}
}

func (s *Server) close() {
	for _, c := range []*net.UDPConn{s.listen, s.stats, s.forward} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			zlog.Warn("Socket close failed", "addr", c.LocalAddr().String(), "error", err.Error())
		}
	}
}

func (s *Server) summary() {
	if s.headless {
		return
	}

	args := make([]any, 0, 12)
	for _, c := range s.counters.pairs() {
		args = append(args, c.name, c.value)
	}

	zlog.Info("DNS server stopped", args...)
}

// Close releases the sockets of a server that will not be Run.
func (s *Server) Close() {
	s.close()
}
