package privacy

import "sort"

// Placeholder returns the text substituted for a redacted span.
func Placeholder(c Category) string {
	return "[REDACTED:" + c.String() + "]"
}

// Redact replaces every match span with its category placeholder. When
// result is nil the text is scanned first. Spans are spliced from the
// highest start offset down so earlier offsets stay valid; overlapping
// matches produce nested placeholders.
func Redact(text string, result *Result) string {
	if result == nil {
		scanned := Scan(text)
		result = &scanned
	}
	if len(result.Matches) == 0 {
		return text
	}

	ordered := make([]Match, len(result.Matches))
	copy(ordered, result.Matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	redacted := text
	for _, m := range ordered {
		// Overlapping spliced spans can shrink the string below an
		// earlier match's bounds.
		start := clamp(m.Start, 0, len(redacted))
		end := clamp(m.End, start, len(redacted))
		redacted = redacted[:start] + Placeholder(m.Category) + redacted[end:]
	}
	return redacted
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
