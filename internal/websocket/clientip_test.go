package websocket

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustNets(t *testing.T, cidrs ...string) []*net.IPNet {
	t.Helper()
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			t.Fatal(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func request(remote string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remote
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestRemoteIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", RemoteIP(request("203.0.113.7:51234", nil)))
	assert.Equal(t, "::1", RemoteIP(request("[::1]:8080", nil)))
	assert.Equal(t, "pipe", RemoteIP(request("pipe", nil)))
}

func TestIPResolver(t *testing.T) {
	proxied := NewIPResolver(mustNets(t, "10.0.0.0/8"))

	tests := []struct {
		name     string
		resolver *IPResolver
		remote   string
		headers  map[string]string
		want     string
	}{
		{
			name:     "PortIsStripped",
			resolver: NewIPResolver(nil),
			remote:   "203.0.113.7:40001",
			want:     "203.0.113.7",
		},
		{
			name:     "HeadersIgnoredWithoutTrustedProxy",
			resolver: NewIPResolver(nil),
			remote:   "203.0.113.7:40001",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Real-IP": "198.51.100.2"},
			want:     "203.0.113.7",
		},
		{
			name:     "HeadersIgnoredFromUntrustedPeer",
			resolver: proxied,
			remote:   "203.0.113.7:40001",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:     "203.0.113.7",
		},
		{
			name:     "RightmostUntrustedHop",
			resolver: proxied,
			remote:   "10.0.0.2:40001",
			headers:  map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1, 10.0.0.9"},
			want:     "198.51.100.1",
		},
		{
			name:     "RealIPFallback",
			resolver: proxied,
			remote:   "10.0.0.2:40001",
			headers:  map[string]string{"X-Real-IP": "198.51.100.2"},
			want:     "198.51.100.2",
		},
		{
			name:     "GarbageHeaderFallsBackToPeer",
			resolver: proxied,
			remote:   "10.0.0.2:40001",
			headers:  map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:     "10.0.0.2",
		},
		{
			name:     "NilResolver",
			resolver: nil,
			remote:   "203.0.113.7:40001",
			want:     "203.0.113.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolver.ClientIP(request(tt.remote, tt.headers)))
		})
	}
}
