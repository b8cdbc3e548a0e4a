package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/dispatch"
	"github.com/raaihank/secureclaw/internal/metrics"
	"github.com/raaihank/secureclaw/internal/privacy"
	"github.com/raaihank/secureclaw/internal/router"
	"github.com/raaihank/secureclaw/internal/websocket"
)

// PrivacyRequest is the body of POST /api/privacy
type PrivacyRequest struct {
	Text string `json:"text"`
}

// PrivacyResponse never carries matched text; Redacted is only set when
// privacy.include_redacted is on.
type PrivacyResponse struct {
	dispatch.PrivacySummary
	Matches  []privacy.Match `json:"matches"`
	Redacted string          `json:"redacted,omitempty"`
}

// RouteRequest is the body of POST /api/route
type RouteRequest struct {
	Query    string            `json:"query"`
	Tools    []router.Tool     `json:"tools"`
	Override dispatch.Override `json:"override"`
}

// ValidateRequest is the body of POST /api/validate. The pre-inference
// decision is taken from Decision, or computed from Query when absent.
type ValidateRequest struct {
	Outcome  router.Outcome   `json:"outcome"`
	Decision *router.Decision `json:"decision,omitempty"`
	Query    string           `json:"query,omitempty"`
	Tools    []router.Tool    `json:"tools"`
}

// ValidateResponse is the gate verdict plus the decision it was judged
// against.
type ValidateResponse struct {
	router.GateResult
	Decision router.Decision `json:"decision"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.current.Load()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"seeds":     st.planner.Router().SeedCount(),
		"embedder":  st.planner.Router().EmbedderName(),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	st := s.current.Load()
	rcfg := st.planner.Router().Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "secureclaw",
		"version":           Version,
		"uptime":            time.Since(s.started).Round(time.Second).String(),
		"privacy_enabled":   st.detector.Enabled(),
		"detectors":         st.detector.EnabledCategoryNames(),
		"embedder":          st.planner.Router().EmbedderName(),
		"seeds":             st.planner.Router().SeedCount(),
		"cloud_threshold":   rcfg.CloudThreshold,
		"websocket_clients": s.wsHub.GetStats().ActiveConnections,
		"rate_limit":        st.cfg.RateLimit.Enabled,
	})
}

// handlePrivacy scans text and reports what was found
func (s *Server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	var req PrivacyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	st := s.current.Load()
	start := time.Now()
	result := st.detector.Scan(req.Text)
	elapsed := time.Since(start)

	resp := PrivacyResponse{
		PrivacySummary: dispatch.Summarize(result),
		Matches:        result.Matches,
	}
	if st.cfg.Privacy.IncludeRedacted {
		resp.Redacted = st.detector.Redact(req.Text, &result)
	}

	metrics.RecordScan(result.RiskLevel.String(), resp.Categories)
	s.wsHub.Publish(websocket.EventTypePrivacyScan, getRequestID(r.Context()), websocket.PrivacyScanEvent{
		RiskLevel:    result.RiskLevel.String(),
		PIITypes:     resp.Categories,
		PIICount:     resp.Count,
		ProcessingMS: float64(elapsed.Microseconds()) / 1000,
	})

	writeJSON(w, http.StatusOK, resp)
}

// handleRoute builds a dispatch plan for a query
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	plan := s.current.Load().planner.Plan(req.Query, req.Tools, req.Override)

	event := websocket.RouteDecisionEvent{
		Route:     plan.Route.String(),
		Source:    plan.Source,
		Requested: string(plan.Requested),
		RiskLevel: plan.Privacy.RiskLevel.String(),
		Consulted: plan.Decision != nil,
		ToolCount: len(req.Tools),
	}
	var blended float64
	if plan.Decision != nil {
		blended = plan.Decision.BlendedScore
		event.BlendedScore = &blended
		event.Reason = plan.Decision.Reason
	}

	metrics.RecordScan(plan.Privacy.RiskLevel.String(), plan.Privacy.Categories)
	metrics.RecordRoute(plan.Route.String(), plan.Source, blended, plan.Decision != nil)
	s.wsHub.Publish(websocket.EventTypeRouteDecision, getRequestID(r.Context()), event)

	writeJSON(w, http.StatusOK, plan)
}

// handleValidate runs the post-inference gate over a local result
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	rt := s.current.Load().planner.Router()
	var pre router.Decision
	switch {
	case req.Decision != nil:
		pre = *req.Decision
	case strings.TrimSpace(req.Query) != "":
		pre = rt.Decide(req.Query, req.Tools)
	}

	verdict := rt.Validate(req.Outcome, pre, req.Tools)

	metrics.RecordGate(verdict.Reason.String(), verdict.ShouldEscalate)
	s.wsHub.Publish(websocket.EventTypeGateVerdict, getRequestID(r.Context()), websocket.GateVerdictEvent{
		Escalate:   verdict.ShouldEscalate,
		Reason:     verdict.Reason.String(),
		Detail:     verdict.Detail,
		Confidence: verdict.Confidence,
		Band:       verdict.Band.String(),
		CallCount:  len(req.Outcome.Calls),
	})
	if verdict.ShouldEscalate {
		s.logger.WithRequestID(getRequestID(r.Context())).Debug("Local result escalated",
			zap.String("reason", verdict.Reason.String()),
			zap.String("detail", verdict.Detail))
	}

	writeJSON(w, http.StatusOK, ValidateResponse{GateResult: verdict, Decision: pre})
}

// decodeRequest decodes a JSON body, keeping numbers as json.Number so tool
// arguments survive intact. It writes the error response itself.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	err := dec.Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is empty")
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
