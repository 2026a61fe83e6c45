package config

import (
	"net"
	"strings"
)

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	var candidates []iface
	for _, i := range interfaces {
		// Ignore loopback and down interfaces
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := i.Addrs()
		candidates = append(candidates, iface{name: i.Name, addrs: addrs})
	}
	return relayNeeded(candidates)
}

type iface struct {
	name  string
	addrs []net.Addr
}

// CGNAT range (100.64.0.0/10). Cloudflare WARP, Tailscale and carrier NATs
// use it; direct P2P from there usually fails.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func relayNeeded(interfaces []iface) bool {
	for _, i := range interfaces {
		name := strings.ToLower(i.name)
		if strings.Contains(name, "tun") || // Standard VPNs (OpenVPN, etc)
			strings.Contains(name, "tap") || // Virtual adapters
			strings.Contains(name, "wg") || // WireGuard
			strings.Contains(name, "ppp") || // Point-to-Point
			strings.Contains(name, "warp") { // Explicit WARP
			return true
		}

		for _, addr := range i.addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
