// Package dispatch turns a user request into a processing plan: scan it for
// PII, apply the caller's routing override and, only when the choice is still
// open, ask the pre-inference router.
package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/privacy"
	"github.com/raaihank/secureclaw/internal/router"
)

// Override is the caller's routing choice.
type Override string

const (
	OverrideAuto  Override = "auto"
	OverrideLocal Override = "local"
	OverrideCloud Override = "cloud"
)

// ParseOverride maps "", auto, local and cloud to an Override.
func ParseOverride(s string) (Override, error) {
	switch o := Override(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OverrideAuto, nil
	case OverrideAuto, OverrideLocal, OverrideCloud:
		return o, nil
	}
	return "", fmt.Errorf("unknown routing override: %s", s)
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Override) UnmarshalText(b []byte) error {
	parsed, err := ParseOverride(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Source labels where a plan will run and who chose it.
const (
	SourcePrivacyForced = "on-device (privacy-forced)"
	SourceUserLocal     = "on-device (user-forced)"
	SourceUserCloud     = "cloud (user-forced)"
	SourceHybridLocal   = "hybrid (local)"
	SourceHybridCloud   = "hybrid (cloud)"
)

// Scanner is satisfied by *privacy.Detector.
type Scanner interface {
	Scan(text string) privacy.Result
}

// PrivacySummary is the part of a scan that is safe to return to callers.
type PrivacySummary struct {
	RiskLevel      privacy.RiskLevel      `json:"risk_level"`
	Categories     []string               `json:"pii_types"`
	Recommendation privacy.Recommendation `json:"recommendation"`
	Summary        string                 `json:"summary"`
	Count          int                    `json:"pii_count"`
}

// Summarize strips matched text from a scan result.
func Summarize(r privacy.Result) PrivacySummary {
	return PrivacySummary{
		RiskLevel:      r.RiskLevel,
		Categories:     r.CategoryNames(),
		Recommendation: r.Recommendation,
		Summary:        r.Summary,
		Count:          len(r.Matches),
	}
}

// Plan is the processing plan for one request.
type Plan struct {
	Privacy   PrivacySummary   `json:"privacy"`
	Requested Override         `json:"requested_override"`
	Override  Override         `json:"override"`
	Route     router.Route     `json:"route"`
	Source    string           `json:"source"`
	Prompt    string           `json:"prompt"`
	Decision  *router.Decision `json:"decision,omitempty"`
}

// Planner builds plans. It is safe for concurrent use when its scanner is.
type Planner struct {
	scanner Scanner
	router  *router.Router
	logger  *zap.Logger
}

// NewPlanner creates a planner. A nil scanner uses privacy.Scan.
func NewPlanner(scanner Scanner, r *router.Router, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{scanner: scanner, router: r, logger: logger}
}

// Router returns the router consulted for auto plans.
func (p *Planner) Router() *router.Router {
	return p.router
}

// Plan scans query, resolves the effective override and consults the router
// only when the override is still auto.
func (p *Planner) Plan(query string, tools []router.Tool, requested Override) Plan {
	if requested == "" {
		requested = OverrideAuto
	}

	var scan privacy.Result
	if p.scanner != nil {
		scan = p.scanner.Scan(query)
	} else {
		scan = privacy.Scan(query)
	}

	plan := Plan{
		Privacy:   Summarize(scan),
		Requested: requested,
		Override:  EffectiveOverride(scan.RiskLevel, requested),
		Prompt:    query,
	}

	switch plan.Override {
	case OverrideLocal:
		plan.Route = router.RouteLocal
		plan.Prompt = ActionClause(query)
		if requested == OverrideLocal {
			plan.Source = SourceUserLocal
		} else {
			plan.Source = SourcePrivacyForced
		}
	case OverrideCloud:
		plan.Route = router.RouteCloud
		plan.Source = SourceUserCloud
	default:
		d := p.router.Decide(query, tools)
		plan.Decision = &d
		plan.Route = d.Route
		if d.Route == router.RouteCloud {
			plan.Source = SourceHybridCloud
		} else {
			plan.Source = SourceHybridLocal
		}
	}

	p.logger.Debug("Dispatch plan",
		zap.String("risk_level", scan.RiskLevel.String()),
		zap.String("requested", string(requested)),
		zap.String("override", string(plan.Override)),
		zap.String("route", plan.Route.String()),
		zap.String("source", plan.Source))

	return plan
}

// EffectiveOverride forces local processing for high and medium risk text
// unless the caller explicitly chose a location.
func EffectiveOverride(risk privacy.RiskLevel, requested Override) Override {
	if requested == OverrideAuto && (risk == privacy.RiskHigh || risk == privacy.RiskMedium) {
		return OverrideLocal
	}
	return requested
}

var clauseSeparator = regexp.MustCompile(`[,;.]\s*`)

var actionWords = map[string]struct{}{
	"set": {}, "get": {}, "send": {}, "play": {}, "search": {},
	"create": {}, "remind": {}, "what": {}, "weather": {}, "alarm": {},
	"timer": {}, "message": {}, "find": {}, "call": {}, "music": {},
}

// ActionClause returns the first clause of message holding an action word,
// trimmed. Words are compared whole, so "weather?" does not count. When no
// clause qualifies the whole message is returned.
func ActionClause(message string) string {
	for _, clause := range clauseSeparator.Split(message, -1) {
		for _, word := range strings.Fields(strings.ToLower(clause)) {
			if _, ok := actionWords[word]; ok {
				return strings.TrimSpace(clause)
			}
		}
	}
	return strings.TrimSpace(message)
}
