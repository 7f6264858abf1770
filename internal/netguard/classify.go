package netguard

import "net"

// Additional non-global ranges net.IP's built-in predicates don't cover:
// CGNAT (RFC 6598), the three IPv4 documentation/test ranges (RFC 5737)
// and the IPv6 documentation prefix (RFC 3849). IPv4-mapped IPv6
// addresses are not listed here: isGlobal unwraps them to their embedded
// IPv4 address before classification.
var nonGlobalNets = []*net.IPNet{
	mustParseCIDR("100.64.0.0/10"),   // CGNAT
	mustParseCIDR("192.0.2.0/24"),    // TEST-NET-1
	mustParseCIDR("198.51.100.0/24"), // TEST-NET-2
	mustParseCIDR("203.0.113.0/24"),  // TEST-NET-3
	mustParseCIDR("2001:db8::/32"),   // IPv6 documentation
}

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// isGlobal mirrors the original engine's IpAddrExt::is_global: an IP is
// global iff it is not unspecified, loopback, link-local (unicast or
// multicast), multicast, private (RFC1918 + ULA fc00::/7), or one of the
// CGNAT/documentation ranges above.
//
// No example repo or ecosystem library in the retrieved pack offers
// public/private IP classification as a focused dependency; net.IP's
// built-in IsPrivate/IsLoopback/IsLinkLocal*/IsMulticast predicates cover
// the bulk of the policy, and hand-rolling the remaining CGNAT/
// documentation ranges as net.IPNet literals is the same approach the Go
// standard library uses internally for this class of problem.
func isGlobal(ip net.IP) bool {
	// net.IP.To4 unwraps IPv4-mapped IPv6 addresses (::ffff:0:0/96) to
	// their embedded IPv4 form, so they're classified by IPv4 rules
	// rather than falling through as opaque IPv6.
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}

	if ip.IsUnspecified() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsPrivate() {
		return false
	}

	for _, n := range nonGlobalNets {
		if n.Contains(ip) {
			return false
		}
	}

	return true
}
