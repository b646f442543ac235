// Package accesslist decides which client addresses may use the proxy.
package accesslist

import (
	"net"

	"github.com/semihalev/zlog/v2"
	"github.com/yl2chen/cidranger"
)

// AccessList type
type AccessList struct {
	ranger cidranger.Ranger
	empty  bool
}

// New return accesslist for the given CIDR networks. Entries that do
// not parse are logged and skipped. An empty list allows everyone.
func New(cidrs []string) *AccessList {
	a := new(AccessList)
	a.ranger = cidranger.NewPCTrieRanger()
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			zlog.Error("Access list parse cidr failed", "cidr", cidr, "error", err.Error())
			continue
		}

		if err := a.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet)); err != nil {
			zlog.Error("Access list insert failed", "cidr", cidr, "error", err.Error())
		}
	}
	a.empty = len(cidrs) == 0

	return a
}

// Allowed reports whether ip may send queries.
func (a *AccessList) Allowed(ip net.IP) bool {
	if a == nil || a.empty {
		return true
	}

	allowed, err := a.ranger.Contains(ip)
	if err != nil {
		return false
	}

	return allowed
}
