package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// PublicServers are queried if a local lookup fails.
// These are well-known, high-availability public DNS providers
var PublicServers = []string{
	"1.0.0.1",                // Cloudflare
	"1.1.1.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.4.4",                // Google
	"8.8.8.8",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
	"208.67.220.220",         // Cisco OpenDNS
	"208.67.222.222",         // Cisco OpenDNS
}

// Resolver looks hosts up with the system resolver first and races public
// servers when that fails. The signaling dialer uses it so a broken local
// resolver does not keep a client out of a call.
type Resolver struct {
	Servers       []string
	LocalTimeout  time.Duration
	RemoteTimeout time.Duration

	dialer net.Dialer
}

// NewResolver returns a resolver with the default public fallback servers.
func NewResolver() *Resolver {
	return &Resolver{
		Servers:       PublicServers,
		LocalTimeout:  1 * time.Second,
		RemoteTimeout: 2 * time.Second,
	}
}

// Lookup resolves a hostname to a single IP address, preferring IPv4.
// IP literals are returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	// 1. Try Local/System DNS first
	ip, err := r.localLookup(ctx, host)
	if err == nil && ip != "" {
		return ip, nil
	}

	// 2. Fallback to public DNS
	return r.remoteLookupWithRace(ctx, host)
}

// DialContext resolves addr with Lookup and dials the resolved address. It
// matches the signature of websocket.Dialer.NetDialContext.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	resolved, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}

	return r.dialer.DialContext(ctx, network, net.JoinHostPort(resolved, port))
}

func (r *Resolver) localLookup(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	defer cancel()

	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pickAddress(ips)
}

// remoteLookupWithRace returns a host's IP address by racing the public servers.
func (r *Resolver) remoteLookupWithRace(ctx context.Context, host string) (string, error) {
	if len(r.Servers) == 0 {
		return "", fmt.Errorf("failed to resolve %s: no fallback servers", host)
	}

	type result struct {
		ip  string
		err error
	}

	results := make(chan result, len(r.Servers))
	ctx, cancel := context.WithTimeout(ctx, r.RemoteTimeout)
	defer cancel()

	for _, server := range r.Servers {
		go func(server string) {
			ip, err := remoteLookup(ctx, host, server)
			results <- result{ip: ip, err: err}
		}(server)
	}

	failures := 0
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil && res.ip != "" {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("DNS lookup timed out during public DNS race")
		}
	}

	return "", fmt.Errorf("failed to resolve %s: all %d public DNS servers failed", host, failures)
}

// remoteLookup queries a specific DNS server for host.
func remoteLookup(ctx context.Context, host, server string) (string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(trimBrackets(server), "53"))
		},
	}

	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pickAddress(ips)
}

// pickAddress prefers the first IPv4 address.
func pickAddress(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func trimBrackets(server string) string {
	if len(server) >= 2 && server[0] == '[' && server[len(server)-1] == ']' {
		return server[1 : len(server)-1]
	}
	return server
}
