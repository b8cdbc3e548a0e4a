package websocket

import (
	"net"
	"net/http"
	"strings"
)

// IPResolver derives the client IP of a request. Forwarding headers are only
// read when the direct peer is a trusted proxy.
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver creates a resolver trusting the given proxy networks. With no
// networks every request resolves to its socket peer.
func NewIPResolver(trusted []*net.IPNet) *IPResolver {
	return &IPResolver{trusted: trusted}
}

// ClientIP returns the client address without a port. Behind trusted
// proxies it walks X-Forwarded-For from the right and returns the first hop
// that is not itself a trusted proxy, then falls back to X-Real-IP.
func (res *IPResolver) ClientIP(r *http.Request) string {
	peer := RemoteIP(r)
	if res == nil || !res.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !res.isTrusted(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

func (res *IPResolver) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range res.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RemoteIP returns the host part of r.RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
