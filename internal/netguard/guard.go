// Package netguard decides whether a URL is a permissible public HTTP(S)
// target: scheme check plus a resolved-IP global-scope check, grounded on
// the original engine's is_public_web_url and its IpAddrExt::is_global
// classification.
package netguard

import (
	"context"
	"log/slog"
	"net"
	"net/url"
)

// Resolver abstracts DNS resolution so tests can inject deterministic
// lookups without touching the network. The default implementation wraps
// net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// netResolver is the default Resolver, backed by net.DefaultResolver.
type netResolver struct{}

func (netResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

// Guard decides whether outbound URLs point at the public internet.
type Guard struct {
	resolver Resolver
}

// New builds a Guard with the given Resolver. A nil Resolver uses
// net.DefaultResolver.
func New(resolver Resolver) *Guard {
	if resolver == nil {
		resolver = netResolver{}
	}
	return &Guard{resolver: resolver}
}

// IsPublicWebURL reports whether rawURL is http(s) and every IP its host
// resolves to (or the IP literal itself) is in globally routable unicast
// scope. This check is advisory: callers consult it only when
// restrict_to_public_urls is configured.
func (g *Guard) IsPublicWebURL(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}

	if ip := net.ParseIP(host); ip != nil {
		return isGlobal(ip)
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		slog.Warn("netguard: cannot resolve host to IP", "host", host, "error", err)
		return false
	}
	if len(addrs) == 0 {
		return false
	}
	for _, addr := range addrs {
		if !isGlobal(addr.IP) {
			return false
		}
	}
	return true
}
