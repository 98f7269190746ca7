// Package safenet guards outbound probe connections against private and
// reserved address space.
package safenet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
)

// ErrBlocked is wrapped by every error DialControl returns.
var ErrBlocked = errors.New("blocked target address")

var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsReserved reports whether addr is loopback, private, link-local,
// multicast or in a documentation/benchmark range.
func IsReserved(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range reserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// DialControl is a net.Dialer Control hook. It runs after DNS resolution, so
// hostnames that resolve into reserved space are rejected too.
func DialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: invalid address %q", ErrBlocked, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: could not parse IP %q", ErrBlocked, host)
	}
	if IsReserved(addr) {
		return fmt.Errorf("%w: %s is a private or reserved address", ErrBlocked, addr)
	}
	return nil
}

// Control returns DialControl when block is set and nil otherwise, for
// direct assignment to net.Dialer.Control.
func Control(block bool) func(string, string, syscall.RawConn) error {
	if !block {
		return nil
	}
	return DialControl
}
