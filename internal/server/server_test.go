package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/logger"
	"github.com/raaihank/secureclaw/internal/router"
)

func testServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	r, err := router.New(corpus.Default(), nil, cfg.Router, zap.NewNop())
	require.NoError(t, err)
	s, err := New(cfg, logger.NewNop(), r)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndInfo(t *testing.T) {
	s := testServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 35, body["seeds"])
	assert.Equal(t, "none", body["embedder"])

	rec = do(t, s, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "secureclaw", body["name"])
	assert.Equal(t, true, body["privacy_enabled"])
	assert.Equal(t, 0.55, body["cloud_threshold"])
}

func TestRequestIDPropagation(t *testing.T) {
	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestPrivacyEndpoint(t *testing.T) {
	t.Run("Redacted", func(t *testing.T) {
		s := testServer(t, nil)
		rec := do(t, s, http.MethodPost, "/api/privacy", `{"text":"My SSN is 123-45-6789"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "high", body["risk_level"])
		assert.Equal(t, "local", body["recommendation"])
		assert.Equal(t, []interface{}{"ssn"}, body["pii_types"])
		assert.Equal(t, "My SSN is [REDACTED:ssn]", body["redacted"])
		assert.NotContains(t, rec.Body.String(), "123-45-6789")
	})

	t.Run("RedactionOff", func(t *testing.T) {
		s := testServer(t, func(c *config.Config) { c.Privacy.IncludeRedacted = false })
		rec := do(t, s, http.MethodPost, "/api/privacy", `{"text":"My SSN is 123-45-6789"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		_, ok := decode(t, rec)["redacted"]
		assert.False(t, ok)
	})
}

func TestRouteEndpoint(t *testing.T) {
	s := testServer(t, nil)

	t.Run("PrivacyForcedLocal", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/route",
			`{"query":"My SSN is 123-45-6789, what's the weather?","tools":[{"name":"get_weather"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "local", body["route"])
		assert.Equal(t, "on-device (privacy-forced)", body["source"])
		assert.Equal(t, "local", body["override"])
		assert.Nil(t, body["decision"])
	})

	t.Run("AutoConsultsRouter", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/route",
			`{"query":"Set an alarm for 7 AM, check the weather, and send a message to Bob","override":"auto",
			"tools":[{"name":"get_weather"},{"name":"set_alarm"},{"name":"send_message"},{"name":"create_reminder"},
			{"name":"search_contacts"},{"name":"play_music"},{"name":"set_timer"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "cloud", body["route"])
		assert.Equal(t, "hybrid (cloud)", body["source"])
		decision := body["decision"].(map[string]interface{})
		assert.InDelta(t, 0.59, decision["blended_score"], 1e-9)
	})

	t.Run("UserCloud", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/route",
			`{"query":"My SSN is 123-45-6789","override":"cloud"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cloud (user-forced)", decode(t, rec)["source"])
	})

	t.Run("BadRequests", func(t *testing.T) {
		for name, body := range map[string]string{
			"Empty":       ``,
			"Malformed":   `{"query":`,
			"NoQuery":     `{"query":"  "}`,
			"BadOverride": `{"query":"hi","override":"sideways"}`,
		} {
			rec := do(t, s, http.MethodPost, "/api/route", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, name)
			assert.Contains(t, decode(t, rec), "error", name)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/route", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestValidateEndpoint(t *testing.T) {
	s := testServer(t, nil)
	tools := `[{"name":"get_weather"},{"name":"set_alarm"}]`

	tests := []struct {
		name     string
		body     string
		escalate bool
		reason   string
	}{
		{
			name:     "Trusted",
			body:     `{"outcome":{"function_calls":[{"name":"get_weather","arguments":{"location":"Paris"}}],"confidence":0.9},"tools":` + tools + `}`,
			escalate: false,
			reason:   "trusted",
		},
		{
			name:     "UnknownTool",
			body:     `{"outcome":{"function_calls":[{"name":"send_email","arguments":{}}],"confidence":0.9},"tools":` + tools + `}`,
			escalate: true,
			reason:   "unknown_tool",
		},
		{
			name:     "NegativeArgument",
			body:     `{"outcome":{"function_calls":[{"name":"set_alarm","arguments":{"hour":-3}}],"confidence":0.9},"tools":` + tools + `}`,
			escalate: true,
			reason:   "negative_argument",
		},
		{
			name:     "Empty",
			body:     `{"outcome":{"function_calls":[],"confidence":0.9},"tools":` + tools + `}`,
			escalate: true,
			reason:   "empty_output",
		},
		{
			name: "DisagreementFromQuery",
			body: `{"outcome":{"function_calls":[{"name":"set_alarm","arguments":{"hour":7}}],"confidence":0.9},` +
				`"query":"Set an alarm for 7 AM and check the weather and then text Bob","tools":` + tools + `}`,
			escalate: true,
			reason:   "pre_inference_disagreement",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/validate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tt.escalate, body["should_escalate"])
			assert.Equal(t, tt.reason, body["reason"])
			assert.Contains(t, body, "decision")
		})
	}
}

func TestBodyLimit(t *testing.T) {
	s := testServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 32 })
	body := `{"text":"` + strings.Repeat("a", 64) + `"}`
	rec := do(t, s, http.MethodPost, "/api/privacy", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	s := testServer(t, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerMin = 1
		c.RateLimit.Burst = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, s, http.MethodPost, "/api/privacy", `{"text":"hello"}`).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// health is not throttled
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/health", "").Code)
}

func TestRateLimitKeysOnClientIP(t *testing.T) {
	from := func(s *Server, remote string, headers map[string]string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/privacy", strings.NewReader(`{"text":"hello"}`))
		req.RemoteAddr = remote
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	limited := func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerMin = 1
		c.RateLimit.Burst = 1
	}

	t.Run("PortsShareOneBucket", func(t *testing.T) {
		s := testServer(t, limited)
		assert.Equal(t, http.StatusOK, from(s, "203.0.113.7:40001", nil))
		for port := 40002; port < 40006; port++ {
			assert.Equal(t, http.StatusTooManyRequests, from(s, fmt.Sprintf("203.0.113.7:%d", port), nil))
		}
		assert.Equal(t, 1, s.limiter.Clients())
	})

	t.Run("ForwardedHeadersIgnoredWithoutTrustedProxy", func(t *testing.T) {
		s := testServer(t, limited)
		assert.Equal(t, http.StatusOK, from(s, "203.0.113.7:40001", nil))
		for i := 0; i < 3; i++ {
			spoof := map[string]string{
				"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i),
				"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i+10),
			}
			assert.Equal(t, http.StatusTooManyRequests, from(s, "203.0.113.7:40001", spoof))
		}
		assert.Equal(t, 1, s.limiter.Clients())
	})

	t.Run("TrustedProxyForwardsClient", func(t *testing.T) {
		s := testServer(t, func(c *config.Config) {
			limited(c)
			c.Server.TrustedProxies = []string{"10.0.0.0/8"}
		})
		xff := func(ip string) map[string]string { return map[string]string{"X-Forwarded-For": ip} }
		assert.Equal(t, http.StatusOK, from(s, "10.0.0.2:5000", xff("198.51.100.1")))
		assert.Equal(t, http.StatusOK, from(s, "10.0.0.2:5001", xff("198.51.100.2")))
		assert.Equal(t, http.StatusTooManyRequests, from(s, "10.0.0.3:5002", xff("198.51.100.1")))
		assert.Equal(t, 2, s.limiter.Clients())
	})
}

func TestLimiterCleanupAfterReload(t *testing.T) {
	s := testServer(t, func(c *config.Config) {
		c.RateLimit.IdleTTL = 20 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.startWorkers(ctx)

	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.IdleTTL = 20 * time.Millisecond
	require.NoError(t, s.Reload(cfg))

	do(t, s, http.MethodPost, "/api/privacy", `{"text":"hello"}`)
	require.Equal(t, 1, s.limiter.Clients())
	assert.Eventually(t, func() bool { return s.limiter.Clients() == 0 }, 2*time.Second, 10*time.Millisecond,
		"idle buckets are swept even though limiting started disabled")
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t, nil)
	do(t, s, http.MethodPost, "/api/privacy", `{"text":"call 555-123-4567"}`)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "secureclaw_privacy_scans_total")
	assert.Contains(t, rec.Body.String(), `secureclaw_requests_total{endpoint="/api/privacy"`)
}

func TestReload(t *testing.T) {
	s := testServer(t, nil)
	query := `{"query":"Play jazz and turn it up","tools":[{"name":"play_music"}]}`
	assert.Equal(t, "local", decode(t, do(t, s, http.MethodPost, "/api/route", query))["route"])

	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	cfg.Router.CloudThreshold = 0.05
	cfg.Privacy.Detectors = []string{"email"}
	require.NoError(t, s.Reload(cfg))
	assert.Equal(t, "cloud", decode(t, do(t, s, http.MethodPost, "/api/route", query))["route"])

	rec := do(t, s, http.MethodPost, "/api/privacy", `{"text":"My SSN is 123-45-6789"}`)
	assert.Equal(t, "low", decode(t, rec)["risk_level"], "ssn detector disabled by reload")

	bad := config.GetDefaults()
	bad.Router.CloudThreshold = 3
	assert.Error(t, s.Reload(bad))
	assert.Equal(t, 0.05, s.current.Load().planner.Router().Config().CloudThreshold)

	bad = config.GetDefaults()
	bad.Privacy.Detectors = []string{"telepathy"}
	assert.Error(t, s.Reload(bad))
}

func TestNewRequiresRouter(t *testing.T) {
	_, err := New(config.GetDefaults(), logger.NewNop(), nil)
	assert.Error(t, err)
}

func TestPlanJSONRoundTrip(t *testing.T) {
	s := testServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/route", `{"query":"Play some jazz","tools":[{"name":"play_music"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var plan struct {
		Decision *router.Decision `json:"decision"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&plan))
	require.NotNil(t, plan.Decision)
	assert.Equal(t, router.RouteLocal, plan.Decision.Route)

	body, err := json.Marshal(map[string]interface{}{
		"outcome":  map[string]interface{}{"function_calls": []map[string]interface{}{{"name": "play_music", "arguments": map[string]interface{}{"genre": "jazz"}}}, "confidence": 0.95},
		"decision": plan.Decision,
		"tools":    []router.Tool{{Name: "play_music"}},
	})
	require.NoError(t, err)
	rec = do(t, s, http.MethodPost, "/api/validate", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["should_escalate"])
}

func TestDashboard(t *testing.T) {
	s := testServer(t, nil)
	rec := do(t, s, http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "routing feed")

	off := testServer(t, func(c *config.Config) { c.WebSocket.Enabled = false })
	assert.Equal(t, http.StatusNotFound, do(t, off, http.MethodGet, "/dashboard", "").Code)
}
