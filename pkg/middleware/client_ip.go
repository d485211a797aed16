package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ParseTrustedProxies parses a comma-separated list of CIDR ranges or IP
// addresses. Single IPs get /32 or /128 appended. Invalid entries are
// skipped.
func ParseTrustedProxies(proxiesStr string) []*net.IPNet {
	var networks []*net.IPNet

	for _, cidr := range strings.Split(proxiesStr, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}

		if !strings.Contains(cidr, "/") {
			ip := net.ParseIP(cidr)
			if ip == nil {
				continue
			}
			if ip.To4() != nil {
				cidr += "/32"
			} else {
				cidr += "/128"
			}
		}

		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		networks = append(networks, network)
	}

	return networks
}

// ClientIP extracts the client address for rate-limit keying.
// X-Forwarded-For and X-Real-IP are only honored when the direct peer is a
// trusted proxy; otherwise a spoofed header would let a client mint fresh
// identities at will. An unparseable remote address yields "", which the
// limiter collapses into its shared unknown identity.
func ClientIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer := net.ParseIP(strings.TrimSpace(host))
	if peer == nil {
		return ""
	}

	if !ipInNetworks(peer, trusted) {
		return peer.String()
	}

	// Leftmost entry of X-Forwarded-For is the original client.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		if ip := net.ParseIP(real); ip != nil {
			return ip.String()
		}
	}

	return peer.String()
}

func ipInNetworks(ip net.IP, networks []*net.IPNet) bool {
	for _, n := range networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
