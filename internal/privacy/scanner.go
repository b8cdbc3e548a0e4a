package privacy

import (
	"fmt"
	"strings"
)

var (
	defaultRules = GetDefaultRules()
	keywordRules = GetKeywordRules()
)

// Scan runs every detector over text and derives a risk assessment. It is
// pure and safe for concurrent use; any input, including the empty string,
// yields a result.
func Scan(text string) Result {
	return scan(text, defaultRules, keywordRules, nil)
}

// scan collects matches from the pattern rules and then the keyword rules.
// A nil enabled func means every category is enabled.
func scan(text string, patterns, keywords []DetectionRule, enabled func(Category) bool) Result {
	matches := make([]Match, 0)
	for _, rule := range patterns {
		if enabled != nil && !enabled(rule.Category) {
			continue
		}
		matches = rule.collect(text, matches)
	}
	for _, rule := range keywords {
		if enabled != nil && !enabled(rule.Category) {
			continue
		}
		matches = rule.collect(text, matches)
	}
	return assess(matches)
}

// collect appends every accepted match of the rule to dst.
func (r DetectionRule) collect(text string, dst []Match) []Match {
	if r.DigitBoundary {
		return r.collectBounded(text, dst)
	}
	for _, loc := range r.Pattern.FindAllStringIndex(text, -1) {
		dst = r.accept(text, loc[0], loc[1], dst)
	}
	return dst
}

// collectBounded scans left to right, trying the anchored pattern at every
// position not preceded by a digit. After a match the scan resumes at its
// end; after a miss, at the next byte.
func (r DetectionRule) collectBounded(text string, dst []Match) []Match {
	bounded := r.bounded
	if bounded == nil {
		bounded = boundedPattern(r.Pattern)
	}

	for pos := 0; pos < len(text); {
		if !canStartNumber(text[pos]) || (pos > 0 && isDigit(text[pos-1])) {
			pos++
			continue
		}
		loc := bounded.FindStringSubmatchIndex(text[pos:])
		if loc == nil || loc[3] == 0 {
			pos++
			continue
		}
		end := pos + loc[3]
		dst = r.accept(text, pos, end, dst)
		pos = end
	}
	return dst
}

func (r DetectionRule) accept(text string, start, end int, dst []Match) []Match {
	matched := text[start:end]
	if r.Validate != nil && !r.Validate(matched) {
		return dst
	}
	return append(dst, Match{
		Category:   r.Category,
		Text:       matched,
		Confidence: r.Confidence,
		Start:      start,
		End:        end,
	})
}

// assess derives the risk level, recommendation and summary from matches.
func assess(matches []Match) Result {
	if len(matches) == 0 {
		return Result{
			RiskLevel:      RiskLow,
			Matches:        matches,
			Recommendation: RecommendAuto,
			Summary:        "No PII detected.",
		}
	}

	hasHigh, hasMedium := false, false
	addresses, nameContexts, highConfidence := 0, 0, 0
	for _, m := range matches {
		switch m.Category.Tier() {
		case TierHigh:
			hasHigh = true
		case TierMedium:
			hasMedium = true
		}
		switch m.Category {
		case CategoryStreetAddress:
			addresses++
		case CategoryNameContext:
			nameContexts++
		}
		if m.Confidence >= HighConfidenceThreshold {
			highConfidence++
		}
	}

	// An address alone is medium risk; several addresses, or an address
	// tied to a person, is high.
	if addresses >= 2 || (addresses >= 1 && nameContexts >= 1) {
		hasHigh = true
	}

	result := Result{Matches: matches}
	switch {
	case hasHigh || highConfidence >= 3:
		result.RiskLevel = RiskHigh
		result.Recommendation = RecommendLocal
	case hasMedium || highConfidence >= 1:
		result.RiskLevel = RiskMedium
		result.Recommendation = RecommendLocal
	default:
		result.RiskLevel = RiskLow
		result.Recommendation = RecommendAuto
	}

	result.Summary = fmt.Sprintf("Detected %d PII instance(s): %s.",
		len(matches), strings.Join(result.CategoryNames(), ", "))

	return result
}
