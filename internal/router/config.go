package router

import "fmt"

// Config holds every weight and threshold used by Decide and Validate.
// A Router copies its Config at construction and never changes it.
type Config struct {
	MultiToolWeight  float64 `yaml:"multi_tool_weight" mapstructure:"multi_tool_weight" json:"multi_tool_weight"`
	PrivacyWeight    float64 `yaml:"privacy_weight" mapstructure:"privacy_weight" json:"privacy_weight"`
	ComplexityWeight float64 `yaml:"complexity_weight" mapstructure:"complexity_weight" json:"complexity_weight"`
	SimilarityWeight float64 `yaml:"similarity_weight" mapstructure:"similarity_weight" json:"similarity_weight"`

	// CloudThreshold is the blended score at or above which a query goes to cloud.
	CloudThreshold float64 `yaml:"cloud_threshold" mapstructure:"cloud_threshold" json:"cloud_threshold"`

	// Confidence bands reported by the gate. They never change its outcome.
	ConfidenceFloor      float64 `yaml:"confidence_floor" mapstructure:"confidence_floor" json:"confidence_floor"`
	ConfidenceBorderline float64 `yaml:"confidence_borderline" mapstructure:"confidence_borderline" json:"confidence_borderline"`
	ConfidenceCeiling    float64 `yaml:"confidence_ceiling" mapstructure:"confidence_ceiling" json:"confidence_ceiling"`
	MultiCallThreshold   float64 `yaml:"multi_call_threshold" mapstructure:"multi_call_threshold" json:"multi_call_threshold"`

	// MultiToolBorderline flags local decisions whose multi-tool score is
	// close enough to warrant a look in the decision log.
	MultiToolBorderline float64 `yaml:"multi_tool_borderline" mapstructure:"multi_tool_borderline" json:"multi_tool_borderline"`

	// DisagreementThreshold is the pre-inference multi-tool score above which
	// a single local call is distrusted.
	DisagreementThreshold float64 `yaml:"disagreement_threshold" mapstructure:"disagreement_threshold" json:"disagreement_threshold"`
}

// DefaultConfig returns the tuned default weights.
func DefaultConfig() Config {
	return Config{
		MultiToolWeight:       0.55,
		PrivacyWeight:         0.10,
		ComplexityWeight:      0.15,
		SimilarityWeight:      0.20,
		CloudThreshold:        0.55,
		ConfidenceFloor:       0.40,
		ConfidenceBorderline:  0.65,
		ConfidenceCeiling:     0.85,
		MultiCallThreshold:    0.75,
		MultiToolBorderline:   0.30,
		DisagreementThreshold: 0.50,
	}
}

// Validate checks weights are non-negative and thresholds lie in [0,1].
func (c Config) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"multi_tool_weight", c.MultiToolWeight},
		{"privacy_weight", c.PrivacyWeight},
		{"complexity_weight", c.ComplexityWeight},
		{"similarity_weight", c.SimilarityWeight},
	}
	var sum float64
	for _, w := range weights {
		if w.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", w.name, w.value)
		}
		sum += w.value
	}
	if sum == 0 {
		return fmt.Errorf("at least one scorer weight must be positive")
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"cloud_threshold", c.CloudThreshold},
		{"confidence_floor", c.ConfidenceFloor},
		{"confidence_borderline", c.ConfidenceBorderline},
		{"confidence_ceiling", c.ConfidenceCeiling},
		{"multi_call_threshold", c.MultiCallThreshold},
		{"multi_tool_borderline", c.MultiToolBorderline},
		{"disagreement_threshold", c.DisagreementThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", th.name, th.value)
		}
	}

	if c.ConfidenceFloor > c.ConfidenceBorderline || c.ConfidenceBorderline > c.ConfidenceCeiling {
		return fmt.Errorf("confidence thresholds must satisfy floor <= borderline <= ceiling (%v, %v, %v)",
			c.ConfidenceFloor, c.ConfidenceBorderline, c.ConfidenceCeiling)
	}
	return nil
}
