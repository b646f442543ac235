package server

import (
	"fmt"
	"strings"
)

// Stats holds the counters a running server accumulates. They are only
// touched by the dispatch loop.
type Stats struct {
	Blocked      uint64 // requests.block
	Forwarded    uint64 // requests.forward
	UpstreamTx   uint64 // upstream.tx
	UpstreamRx   uint64 // upstream.rx
	DownstreamTx uint64 // downstream.tx
	DownstreamRx uint64 // downstream.rx
}

func (st *Stats) block() {
	st.Blocked++
	requestsTotal.WithLabelValues("block").Inc()
}

func (st *Stats) forward(n int) {
	st.Forwarded++
	st.UpstreamTx += uint64(n)
	requestsTotal.WithLabelValues("forward").Inc()
	bytesTotal.WithLabelValues("upstream", "tx").Add(float64(n))
}

func (st *Stats) upstreamRx(n int) {
	st.UpstreamRx += uint64(n)
	bytesTotal.WithLabelValues("upstream", "rx").Add(float64(n))
}

func (st *Stats) downstreamTx(n int) {
	st.DownstreamTx += uint64(n)
	bytesTotal.WithLabelValues("downstream", "tx").Add(float64(n))
}

func (st *Stats) downstreamRx(n int) {
	st.DownstreamRx += uint64(n)
	bytesTotal.WithLabelValues("downstream", "rx").Add(float64(n))
}

// String renders the counters as the stats socket reply: one name:value
// pair per line.
func (st Stats) String() string {
	var b strings.Builder

	for _, c := range st.pairs() {
		fmt.Fprintf(&b, "%s:%d\n", c.name, c.value)
	}

	return b.String()
}

type counter struct {
	name  string
	value uint64
}

func (st Stats) pairs() []counter {
	return []counter{
		{"requests.block", st.Blocked},
		{"requests.forward", st.Forwarded},
		{"upstream.tx", st.UpstreamTx},
		{"upstream.rx", st.UpstreamRx},
		{"downstream.tx", st.DownstreamTx},
		{"downstream.rx", st.DownstreamRx},
	}
}

// isStatsRequest reports whether b asks for the counters. Only the first
// five bytes are looked at, case folded.
func isStatsRequest(b []byte) bool {
	const req = "stats"
	return len(b) >= len(req) && strings.EqualFold(string(b[:len(req)]), req)
}
