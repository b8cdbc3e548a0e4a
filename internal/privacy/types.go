package privacy

import (
	"fmt"
	"regexp"
)

// Category is the closed set of PII kinds the scanner can report.
type Category int

const (
	CategoryEmail Category = iota
	CategoryPhone
	CategorySSN
	CategoryCreditCard
	CategoryIPAddress
	CategoryStreetAddress
	CategoryDateOfBirth
	CategoryPassport
	CategoryHealth
	CategoryFinancial
	CategoryPassword
	CategoryNameContext

	categoryCount
)

var categoryNames = [categoryCount]string{
	CategoryEmail:         "email",
	CategoryPhone:         "phone",
	CategorySSN:           "ssn",
	CategoryCreditCard:    "credit_card",
	CategoryIPAddress:     "ip_address",
	CategoryStreetAddress: "street_address",
	CategoryDateOfBirth:   "date_of_birth",
	CategoryPassport:      "passport",
	CategoryHealth:        "health",
	CategoryFinancial:     "financial",
	CategoryPassword:      "password",
	CategoryNameContext:   "name_context",
}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	all := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		all = append(all, c)
	}
	return all
}

func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || c >= categoryCount {
		return nil, fmt.Errorf("unknown category: %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory maps a category name such as "credit_card" to its value.
func ParseCategory(name string) (Category, error) {
	for c := Category(0); c < categoryCount; c++ {
		if categoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category: %s", name)
}

// Tier groups categories by routing severity.
type Tier int

const (
	TierNone Tier = iota
	TierMedium
	TierHigh
)

// Tier reports which risk tier the category belongs to. IP addresses are
// detected but belong to neither tier.
func (c Category) Tier() Tier {
	switch c {
	case CategorySSN, CategoryCreditCard, CategoryPassword,
		CategoryPassport, CategoryHealth, CategoryFinancial:
		return TierHigh
	case CategoryEmail, CategoryPhone, CategoryDateOfBirth,
		CategoryStreetAddress, CategoryNameContext:
		return TierMedium
	case CategoryIPAddress:
		return TierNone
	default:
		return TierNone
	}
}

// RiskLevel is the aggregate severity of a scan.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return fmt.Sprintf("risk(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *RiskLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*r = RiskLow
	case "medium":
		*r = RiskMedium
	case "high":
		*r = RiskHigh
	default:
		return fmt.Errorf("unknown risk level: %s", string(b))
	}
	return nil
}

// Recommendation is the processing location the scanner suggests.
type Recommendation int

const (
	RecommendAuto Recommendation = iota
	RecommendLocal
	RecommendCloud
)

func (r Recommendation) String() string {
	switch r {
	case RecommendAuto:
		return "auto"
	case RecommendLocal:
		return "local"
	case RecommendCloud:
		return "cloud"
	default:
		return fmt.Sprintf("recommendation(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler
func (r Recommendation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Recommendation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "auto":
		*r = RecommendAuto
	case "local":
		*r = RecommendLocal
	case "cloud":
		*r = RecommendCloud
	default:
		return fmt.Errorf("unknown recommendation: %s", string(b))
	}
	return nil
}

// DetectionRule is a single compiled matcher
type DetectionRule struct {
	Category   Category
	Pattern    *regexp.Regexp
	Confidence float64
	// Validate, when set, discards candidates it returns false for.
	Validate func(matched string) bool
	// DigitBoundary restricts matches to spans neither preceded nor
	// followed by a digit. Candidates are tried at every start position, so
	// a rejected span does not hide a shorter or later match inside it.
	DigitBoundary bool

	// bounded is Pattern anchored at the start and followed by a non-digit
	// or the end of text.
	bounded *regexp.Regexp
}

// Match is one detected PII instance. Start and End are byte offsets into
// the scanned text.
type Match struct {
	Category   Category `json:"category"`
	Text       string   `json:"-"` // never serialize the matched PII
	Confidence float64  `json:"confidence"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
}

// Result is the aggregate assessment of one scan.
type Result struct {
	RiskLevel      RiskLevel      `json:"risk_level"`
	Matches        []Match        `json:"matches"`
	Recommendation Recommendation `json:"recommendation"`
	Summary        string         `json:"summary"`
}

// Categories returns the distinct categories found, in declaration order.
func (r Result) Categories() []Category {
	var seen [categoryCount]bool
	for _, m := range r.Matches {
		if m.Category >= 0 && m.Category < categoryCount {
			seen[m.Category] = true
		}
	}
	categories := make([]Category, 0)
	for c := Category(0); c < categoryCount; c++ {
		if seen[c] {
			categories = append(categories, c)
		}
	}
	return categories
}

// CategoryNames is Categories rendered as strings.
func (r Result) CategoryNames() []string {
	categories := r.Categories()
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.String()
	}
	return names
}
