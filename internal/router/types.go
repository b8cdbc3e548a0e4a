package router

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Route is where a query should be answered.
type Route string

const (
	RouteLocal Route = "local"
	RouteCloud Route = "cloud"
)

func (r Route) String() string { return string(r) }

// UnmarshalText rejects anything but local and cloud.
func (r *Route) UnmarshalText(b []byte) error {
	switch Route(b) {
	case RouteLocal, RouteCloud:
		*r = Route(b)
		return nil
	}
	return fmt.Errorf("unknown route: %s", string(b))
}

// GateReason is the code attached to every gate result.
type GateReason string

const (
	ReasonEmptyOutput      GateReason = "empty_output"
	ReasonHandoffFlag      GateReason = "handoff_flag"
	ReasonMultiCall        GateReason = "multi_call"
	ReasonUnknownTool      GateReason = "unknown_tool"
	ReasonNegativeArgument GateReason = "negative_argument"
	ReasonHallucinatedDate GateReason = "hallucinated_date"
	ReasonEmptyArgument    GateReason = "empty_argument"
	ReasonDisagreement     GateReason = "pre_inference_disagreement"
	ReasonTrusted          GateReason = "trusted"
)

var gateReasons = []GateReason{
	ReasonEmptyOutput,
	ReasonHandoffFlag,
	ReasonMultiCall,
	ReasonUnknownTool,
	ReasonNegativeArgument,
	ReasonHallucinatedDate,
	ReasonEmptyArgument,
	ReasonDisagreement,
	ReasonTrusted,
}

func (g GateReason) String() string { return string(g) }

// Escalates reports whether the reason sends the request to cloud.
func (g GateReason) Escalates() bool { return g != ReasonTrusted }

// UnmarshalText implements encoding.TextUnmarshaler
func (g *GateReason) UnmarshalText(b []byte) error {
	for _, known := range gateReasons {
		if string(known) == string(b) {
			*g = known
			return nil
		}
	}
	return fmt.Errorf("unknown gate reason: %s", string(b))
}

// Band classifies a self-reported confidence against the configured thresholds.
type Band string

const (
	BandLow        Band = "low"
	BandBorderline Band = "borderline"
	BandModerate   Band = "moderate"
	BandHigh       Band = "high"
)

func (b Band) String() string { return string(b) }

// Tool describes a callable skill. Only Name is read by the router.
type Tool struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// FunctionCall is one call returned by the local model.
type FunctionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Outcome is the local model's result envelope.
type Outcome struct {
	Calls        []FunctionCall `json:"function_calls"`
	Confidence   float64        `json:"confidence"`
	CloudHandoff bool           `json:"cloud_handoff,omitempty"`
}

// DecodeOutcome decodes an outcome keeping numeric arguments as json.Number,
// so large integers are not rounded through float64.
func DecodeOutcome(data []byte) (Outcome, error) {
	var out Outcome
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return Outcome{}, fmt.Errorf("failed to decode outcome: %w", err)
	}
	return out, nil
}

// SeedMatch is one corpus neighbour recorded on a decision.
type SeedMatch struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	ToolCount  int     `json:"tool_count"`
}

// Decision is the pre-inference result. Every component score is kept for
// explainability.
type Decision struct {
	Route           Route       `json:"route"`
	Reason          string      `json:"reason"`
	MultiToolScore  float64     `json:"multi_tool_score"`
	PrivacyScore    float64     `json:"privacy_score"`
	ComplexityScore float64     `json:"complexity_score"`
	SimilarityScore float64     `json:"similarity_score"`
	BlendedScore    float64     `json:"blended_score"`
	Matches         []SeedMatch `json:"matched_seeds"`
	// Borderline marks local decisions whose multi-tool score reached
	// Config.MultiToolBorderline.
	Borderline bool `json:"borderline"`
}

// GateResult is the post-inference verdict.
type GateResult struct {
	ShouldEscalate bool       `json:"should_escalate"`
	Confidence     float64    `json:"confidence"`
	Reason         GateReason `json:"reason"`
	Detail         string     `json:"detail"`
	Band           Band       `json:"band"`
}
