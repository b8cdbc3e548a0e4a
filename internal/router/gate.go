package router

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// longDatePattern matches calendar dates such as 2024-3-15. Plain times of
// day are expected from the local model, dates are not.
var longDatePattern = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`)

// Validate inspects the local model's output and decides whether to escalate
// to cloud. The model's self-reported confidence is recorded but does not
// change the outcome. The first failing check wins:
//
//  1. no calls
//  2. cloud handoff requested
//  3. more than one call
//  4. call to a tool missing from a non-empty allowlist
//  5. negative numeric argument
//  6. string argument containing a YYYY-M-D date
//  7. empty or whitespace-only string argument
//  8. pre-inference multi-tool score above DisagreementThreshold
//
// Arguments are visited in sorted key order.
func (r *Router) Validate(out Outcome, pre Decision, allowlist []Tool) GateResult {
	res := r.gate(out, pre, allowlist)
	res.Confidence = out.Confidence
	res.Band = r.band(out.Confidence)
	res.ShouldEscalate = res.Reason.Escalates()

	r.logger.Debug("Gate verdict",
		zap.String("reason", res.Reason.String()),
		zap.Bool("escalate", res.ShouldEscalate),
		zap.Float64("confidence", res.Confidence),
		zap.String("band", res.Band.String()))

	return res
}

func (r *Router) gate(out Outcome, pre Decision, allowlist []Tool) GateResult {
	if len(out.Calls) == 0 {
		return GateResult{Reason: ReasonEmptyOutput, Detail: "no function calls returned by local model"}
	}
	if out.CloudHandoff {
		return GateResult{Reason: ReasonHandoffFlag, Detail: "cloud handoff flag set upstream"}
	}
	if n := len(out.Calls); n > 1 {
		detail := fmt.Sprintf("multi-call: %d calls returned", n)
		if out.Confidence >= r.cfg.MultiCallThreshold {
			detail += fmt.Sprintf(" at confidence %.2f", out.Confidence)
		}
		return GateResult{Reason: ReasonMultiCall, Detail: detail}
	}

	call := out.Calls[0]
	if len(allowlist) > 0 && !containsTool(allowlist, call.Name) {
		return GateResult{Reason: ReasonUnknownTool, Detail: fmt.Sprintf("called %q not in available tools", call.Name)}
	}

	keys := make([]string, 0, len(call.Arguments))
	for k := range call.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if n, ok := numeric(call.Arguments[k]); ok && n < 0 {
			return GateResult{Reason: ReasonNegativeArgument, Detail: fmt.Sprintf("negative arg %s=%v", k, call.Arguments[k])}
		}
	}
	for _, k := range keys {
		if s, ok := call.Arguments[k].(string); ok && longDatePattern.MatchString(s) {
			return GateResult{Reason: ReasonHallucinatedDate, Detail: fmt.Sprintf("hallucinated date in %s=%q", k, s)}
		}
	}
	for _, k := range keys {
		if s, ok := call.Arguments[k].(string); ok && strings.TrimSpace(s) == "" {
			return GateResult{Reason: ReasonEmptyArgument, Detail: fmt.Sprintf("empty arg %s", k)}
		}
	}

	if pre.MultiToolScore > r.cfg.DisagreementThreshold {
		return GateResult{
			Reason: ReasonDisagreement,
			Detail: fmt.Sprintf("pre-inference multi_tool=%.2f but got single call", pre.MultiToolScore),
		}
	}

	return GateResult{Reason: ReasonTrusted, Detail: fmt.Sprintf("trust local: validated single call to %s", call.Name)}
}

func (r *Router) band(confidence float64) Band {
	switch {
	case confidence >= r.cfg.ConfidenceCeiling:
		return BandHigh
	case confidence >= r.cfg.ConfidenceBorderline:
		return BandModerate
	case confidence >= r.cfg.ConfidenceFloor:
		return BandBorderline
	default:
		return BandLow
	}
}

func containsTool(tools []Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// numeric reports the value of v when it is a number. Booleans are not numbers.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint, uint8, uint16, uint32, uint64:
		return 0, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
