package netguard

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeResolver struct {
	addrs []net.IPAddr
	err   error
}

func (f fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return f.addrs, f.err
}

func TestIsPublicWebURLScheme(t *testing.T) {
	g := New(fakeResolver{addrs: []net.IPAddr{{IP: net.ParseIP("172.32.0.2")}}})
	cases := map[string]bool{
		"ftp://retrack.dev/my-page":   false,
		"wss://retrack.dev/my-page":   false,
		"http://retrack.dev/my-page":  true,
		"https://retrack.dev/my-page": true,
	}
	for rawURL, want := range cases {
		if got := g.IsPublicWebURL(context.Background(), rawURL); got != want {
			t.Errorf("%s: got %v, want %v", rawURL, got, want)
		}
	}
}

func TestIsPublicWebURLResolvedHost(t *testing.T) {
	publicGuard := New(fakeResolver{addrs: []net.IPAddr{{IP: net.ParseIP("172.32.0.2")}}})
	if !publicGuard.IsPublicWebURL(context.Background(), "https://retrack.dev/my-page") {
		t.Error("expected public resolved host to pass")
	}

	localGuard := New(fakeResolver{addrs: []net.IPAddr{{IP: net.ParseIP("127.0.0.1")}}})
	if localGuard.IsPublicWebURL(context.Background(), "https://retrack.dev/my-page") {
		t.Error("expected loopback-resolved host to fail")
	}

	brokenGuard := New(fakeResolver{err: errors.New("can not lookup IPs")})
	if brokenGuard.IsPublicWebURL(context.Background(), "https://retrack.dev/my-page") {
		t.Error("expected resolution failure to fail closed")
	}
}

func TestIsPublicWebURLLiteralIPs(t *testing.T) {
	g := New(fakeResolver{})
	cases := map[string]bool{
		"http://127.0.0.1/my-page":                                         false,
		"http://10.254.0.0/my-page":                                        false,
		"http://192.168.10.65/my-page":                                     false,
		"http://172.16.10.65/my-page":                                      false,
		"http://[2001:0db8:85a3:0000:0000:8a2e:0370:7334]/my-page":         false,
		"http://[::1]/my-page":                                            false,
		"http://217.88.39.143/my-page":                                     true,
		"http://[2001:1234:abcd:5678:0221:2fff:feb5:6e10]/my-page":         true,
		"http://100.64.0.5/my-page":                                        false, // CGNAT
		"http://192.0.2.10/my-page":                                        false, // documentation
	}
	for rawURL, want := range cases {
		if got := g.IsPublicWebURL(context.Background(), rawURL); got != want {
			t.Errorf("%s: got %v, want %v", rawURL, got, want)
		}
	}
}
