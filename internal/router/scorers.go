package router

import (
	"math"
	"regexp"
	"strings"

	"github.com/raaihank/secureclaw/internal/vector"
)

var (
	conjunctionPattern = regexp.MustCompile(`(?i)\b(and|then|also|plus|after that|as well|additionally)\b`)
	actionVerbPattern  = regexp.MustCompile(`(?i)\b(set|send|play|get|check|search|find|create|remind|text|message|call|start|timer|alarm|weather|look up|tell me|wake|put on)\b`)
	commaClausePattern = regexp.MustCompile(`(?i),\s*(?:and\s+)?(?:then\s+)?`)
	numberPattern      = regexp.MustCompile(`\b\d+\b`)
)

// privacySignal is a cheap pre-filter, kept separate from the full scanner
// in the privacy package.
type privacySignal struct {
	pattern *regexp.Regexp
	weight  float64
}

var privacySignals = []privacySignal{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 1.0},
	{regexp.MustCompile(`\b\d{16}\b`), 1.0},
	{regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`), 0.9},
	{regexp.MustCompile(`(?i)\bpassword\b`), 0.7},
	{regexp.MustCompile(`(?i)\bsecret\b`), 0.7},
	{regexp.MustCompile(`(?i)\bprivate\b`), 0.7},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), 0.3},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), 0.3},
}

const (
	similarityTopK        = 3
	multiToolSeedSim      = 0.70
	multiToolNeighbourSim = 0.60
	similarityBoostFloor  = 0.6
)

func scoreMultiTool(query string, toolCount int) float64 {
	var score float64

	switch n := len(conjunctionPattern.FindAllString(query, -1)); {
	case n >= 2:
		score += 0.45
	case n == 1:
		score += 0.30
	}

	verbs := make(map[string]struct{})
	for _, v := range actionVerbPattern.FindAllString(query, -1) {
		verbs[strings.ToLower(v)] = struct{}{}
	}
	switch n := len(verbs); {
	case n >= 3:
		score += 0.35
	case n == 2:
		score += 0.20
	}

	switch n := len(commaClausePattern.FindAllString(query, -1)); {
	case n >= 2:
		score += 0.20
	case n == 1:
		score += 0.10
	}

	if toolCount >= 7 {
		score += 0.10
	}
	return math.Min(score, 1)
}

func scorePrivacy(query string) float64 {
	var best float64
	for _, s := range privacySignals {
		if s.weight > best && s.pattern.MatchString(query) {
			best = s.weight
		}
	}
	return best
}

func scoreComplexity(query string, toolCount int) float64 {
	var score float64

	switch {
	case toolCount >= 7:
		score += 0.25
	case toolCount >= 4:
		score += 0.15
	case toolCount >= 2:
		score += 0.05
	}

	switch words := len(strings.Fields(query)); {
	case words >= 20:
		score += 0.25
	case words >= 12:
		score += 0.15
	case words >= 8:
		score += 0.05
	}

	switch n := len(numberPattern.FindAllString(query, -1)); {
	case n >= 3:
		score += 0.15
	case n >= 1:
		score += 0.05
	}
	return math.Min(score, 1)
}

// scoreSimilarity remaps the best neighbour's similarity from [0.5,1] onto
// [0,1] and raises it when the neighbourhood is dominated by multi-tool seeds.
func scoreSimilarity(hits []vector.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}

	best := hits[0]
	score := math.Max(0, best.Similarity-0.5) * 2

	if best.Entry.MultiTool() && best.Similarity >= multiToolSeedSim {
		score = math.Max(score, 0.8)
	}

	multi := 0
	for _, h := range hits {
		if h.Entry.MultiTool() && h.Similarity >= multiToolNeighbourSim {
			multi++
		}
	}
	if multi >= 2 {
		score = math.Max(score, 0.6)
	}
	return math.Min(score, 1)
}
