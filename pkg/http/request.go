package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds the parsed trusted proxy ranges used for client IP extraction
type IPConfig struct {
	trusted []netip.Prefix
}

// NewIPConfig parses CIDR ranges of trusted proxies; invalid entries are skipped
func NewIPConfig(cidrs []string) *IPConfig {
	cfg := &IPConfig{}
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(c))
		if err != nil {
			continue
		}
		cfg.trusted = append(cfg.trusted, prefix.Masked())
	}
	return cfg
}

// ExtractClientIP returns the caller's IP. Forwarding headers are honoured only
// when the direct peer is a trusted proxy, so clients cannot spoof their address.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)

	if config == nil || !config.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
				return addr.String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.String()
		}
	}

	return remoteIP
}

func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (c *IPConfig) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
