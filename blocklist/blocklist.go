// Package blocklist holds the set of blocked domains as a trie keyed by
// domain label, top level label first. A domain blocks itself and every
// name below it.
package blocklist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/miekg/dns"
	"github.com/semihalev/zlog/v2"
)

// ErrInvalidDomain is returned by Insert for names that are not valid
// domain names.
var ErrInvalidDomain = errors.New("invalid domain")

const root = 0

type node struct {
	children map[string]int32
}

// Blocklist type. Nodes live in one arena and address their children
// by index. A node without children terminates an inserted domain.
//
// A Blocklist is not safe for concurrent Insert, but once built it may
// be matched from any number of goroutines.
type Blocklist struct {
	nodes []node
	count int
}

// New returns an empty blocklist.
func New() *Blocklist {
	return &Blocklist{nodes: []node{{}}}
}

// Build reads the blocklist file at path.
func Build(path string) (*Blocklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blocklist: %w", err)
	}
	defer f.Close()

	b := New()
	if err := b.Load(f); err != nil {
		return nil, fmt.Errorf("read blocklist %s: %w", path, err)
	}

	zlog.Info("Blocked domains loaded", "path", path, "total", b.Len())

	return b, nil
}

// maxLine bounds a blocklist line, longer lines are skipped whole.
const maxLine = 4096

// Load adds every domain read from r. Blank lines and comments are
// skipped, and so are hosts file addresses: for "0.0.0.0 ads.example.com"
// only the names are used. An invalid or over-long line is logged and
// does not stop the load.
func (b *Blocklist) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, maxLine)

	ln := 0
	for {
		raw, isPrefix, err := br.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading blocklist: %w", err)
		}
		ln++

		if isPrefix {
			for isPrefix && err == nil {
				_, isPrefix, err = br.ReadLine()
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("error reading blocklist: %w", err)
			}

			zlog.Warn("Blocklist line too long, skipped", "line", ln, "max", maxLine)
			continue
		}

		for _, name := range entries(string(raw)) {
			if err := b.Insert(name); err != nil {
				zlog.Warn("Blocklist entry skipped", "line", ln, "entry", name, "error", err.Error())
			}
		}
	}
}

// entries returns the domains named on one line. A line starting with
// an address is a hosts file line and every name after it counts;
// otherwise only the first field does.
func entries(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	if _, err := netip.ParseAddr(fields[0]); err == nil {
		return fields[1:]
	}

	return fields[:1]
}

// Insert adds domain to the trie. Inserting a name already covered by a
// blocked parent adds nothing; inserting a parent of blocked names
// replaces them.
func (b *Blocklist) Insert(domain string) error {
	labels, err := split(domain)
	if err != nil {
		return err
	}

	if len(b.nodes) == 0 {
		b.nodes = []node{{}}
	}

	cur := int32(root)
	for i := len(labels) - 1; i >= 0; i-- {
		next, ok := b.nodes[cur].children[labels[i]]
		if !ok {
			next = int32(len(b.nodes))
			b.nodes = append(b.nodes, node{})
			if b.nodes[cur].children == nil {
				b.nodes[cur].children = make(map[string]int32)
			}
			b.nodes[cur].children[labels[i]] = next
			cur = next
			continue
		}

		if len(b.nodes[next].children) == 0 {
			// a parent of domain is already blocked
			return nil
		}
		cur = next
	}

	if len(b.nodes[cur].children) > 0 {
		// domain is a parent of blocked names, which it now covers
		b.nodes[cur].children = nil
	}
	b.count++

	return nil
}

func split(domain string) ([]string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if strings.ContainsAny(domain, `*\`) {
		// no wildcard or escape syntax
		return nil, ErrInvalidDomain
	}
	if _, ok := dns.IsDomainName(domain); !ok {
		return nil, ErrInvalidDomain
	}

	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return nil, ErrInvalidDomain
	}

	labels := strings.Split(domain, ".")
	for _, l := range labels {
		if l == "" || len(l) > 63 {
			return nil, ErrInvalidDomain
		}
	}

	return labels, nil
}

// Match reports whether the name given by labels, in wire order, is a
// blocked domain or below one. A nil Blocklist matches nothing.
func (b *Blocklist) Match(labels []string) bool {
	if b == nil || len(b.nodes) == 0 {
		return false
	}

	cur := int32(root)
	for i := len(labels) - 1; i >= 0; i-- {
		next, ok := b.nodes[cur].children[strings.ToLower(labels[i])]
		if !ok {
			return false
		}

		if len(b.nodes[next].children) == 0 {
			return true
		}

		if i == 0 {
			// name is a parent of a blocked domain
			return false
		}

		cur = next
	}

	return false
}

// MatchName is Match for a dotted name.
func (b *Blocklist) MatchName(name string) bool {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return false
	}
	return b.Match(strings.Split(name, "."))
}

// Len returns the number of domains in the trie.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return b.count
}

// Destroy releases every node, children before parents, walking the
// trie with an explicit stack. The blocklist matches nothing afterwards.
func (b *Blocklist) Destroy() {
	if b == nil || len(b.nodes) == 0 {
		return
	}

	type frame struct {
		idx     int32
		visited bool
	}

	stack := []frame{{idx: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if !top.visited {
			top.visited = true
			for _, child := range b.nodes[top.idx].children {
				stack = append(stack, frame{idx: child})
			}
			continue
		}

		idx := top.idx
		stack = stack[:len(stack)-1]

		clear(b.nodes[idx].children)
		b.nodes[idx].children = nil
	}

	b.nodes = nil
	b.count = 0
}
