package privacy

import "regexp"

// Confidence at or above which a match counts towards the
// high-confidence tally. It coincides with the phone, passport and street
// address base confidences; retuning it moves those families in or out.
const HighConfidenceThreshold = 0.85

var streetSuffixes = `(?:St(?:reet)?|Ave(?:nue)?|Blvd|Boulevard|Dr(?:ive)?|` +
	`Ln|Lane|Rd|Road|Way|Ct|Court|Pl(?:ace)?|Cir(?:cle)?|` +
	`Pkwy|Parkway|Terr(?:ace)?|Hwy|Highway|Close|Crescent|Walk)`

// phonePattern is matched through digitBounded; RE2 has no look-around.
var phonePattern = regexp.MustCompile(
	`(?:\+?\d{1,3}[\s\-.]?)?` +
		`(?:\(?\d{2,4}\)?[\s\-.]?)` +
		`\d{3,4}[\s\-.]?\d{3,4}`)

// GetDefaultRules returns the structured-pattern rules in scan order.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Category:   CategoryEmail,
			Pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			Confidence: 0.95,
		},
		digitBounded(DetectionRule{
			Category:   CategoryPhone,
			Pattern:    phonePattern,
			Confidence: 0.85,
		}),
		{
			Category:   CategorySSN,
			Pattern:    regexp.MustCompile(`\b\d{3}[\s\-]?\d{2}[\s\-]?\d{4}\b`),
			Confidence: 0.90,
			Validate:   hasNineDigits,
		},
		{
			Category:   CategoryCreditCard,
			Pattern:    regexp.MustCompile(`\b(?:\d[\s\-]?){12,18}\d\b`),
			Confidence: 0.90,
			Validate:   LuhnValid,
		},
		{
			Category: CategoryIPAddress,
			Pattern: regexp.MustCompile(
				`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}` +
					`(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\b`),
			Confidence: 0.80,
		},
		{
			Category: CategoryDateOfBirth,
			Pattern: regexp.MustCompile(
				`(?i)\b(?:born\s+(?:on\s+)?|dob[\s:]+|date\s+of\s+birth[\s:]+|birthday[\s:]+)` +
					`(?:\d{1,2}[\s/\-.]\d{1,2}[\s/\-.]\d{2,4}|\w+\s+\d{1,2},?\s+\d{4})`),
			Confidence: 0.90,
		},
		{
			Category:   CategoryPassport,
			Pattern:    regexp.MustCompile(`(?i)\b(?:passport[\s#:]+)([A-Z]{1,2}\d{6,9})\b`),
			Confidence: 0.85,
		},
		{
			Category: CategoryStreetAddress,
			Pattern: regexp.MustCompile(
				`(?i)\b\d{1,6}[A-Za-z]?\s+(?:[A-Z][a-z]+\s+){1,4}` + streetSuffixes + `\.?\b`),
			Confidence: 0.85,
		},
		{
			// Postal codes: US ZIP(+4), 6-digit SG/IN, UK, Canada.
			Category: CategoryStreetAddress,
			Pattern: regexp.MustCompile(
				`\b(?:` +
					`\d{5}(?:-\d{4})?|` +
					`\d{6}|` +
					`[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}|` +
					`[A-Z]\d[A-Z]\s*\d[A-Z]\d` +
					`)\b`),
			Confidence: 0.70,
		},
	}
}

// GetKeywordRules returns the context-phrase rules in scan order.
func GetKeywordRules() []DetectionRule {
	return []DetectionRule{
		{
			Category: CategoryHealth,
			Pattern: regexp.MustCompile(
				`(?i)\b(?:diagnosis|prescription|medication|patient\s+id|medical\s+record|` +
					`blood\s+type|allergy|allergies|symptoms?|treatment|surgery|` +
					`health\s+insurance|insurance\s+id|doctor\s+visit|hospital|` +
					`mental\s+health|therapy\s+session|hiv|std|pregnant|pregnancy)\b`),
			Confidence: 0.70,
		},
		{
			Category: CategoryFinancial,
			Pattern: regexp.MustCompile(
				`(?i)\b(?:bank\s+account|routing\s+number|account\s+number|` +
					`tax\s+id|ein|tin|salary|income|net\s+worth|` +
					`social\s+security|iban|swift\s+code|pin\s+(?:number|code)|` +
					`cvv|cvc|expir(?:y|ation)\s+date)\b`),
			Confidence: 0.75,
		},
		{
			Category: CategoryPassword,
			Pattern: regexp.MustCompile(
				`(?i)\b(?:(?:my\s+)?password\s+is|(?:my\s+)?password\s+to|` +
					`change\s+(?:my\s+)?password|reset\s+(?:my\s+)?password|` +
					`new\s+password|update\s+(?:my\s+)?password|` +
					`passwd[\s:]+|secret[\s:]+|api[\s_\-]?key[\s:]+|token[\s:]+|` +
					`private[\s_\-]?key[\s:]+|credentials?[\s:]+)\b`),
			Confidence: 0.90,
		},
		{
			Category: CategoryNameContext,
			Pattern: regexp.MustCompile(
				`(?i)\b(?:my\s+(?:full\s+)?name\s+is|i\s+am\s+called|` +
					`my\s+(?:real|legal)\s+name|` +
					`my\s+(?:home|mailing|billing)\s+address|` +
					`i\s+live\s+at|i\s+stay\s+at|my\s+address\s+is|` +
					`i\s+reside\s+at|deliver\s+to|ship\s+to)\b`),
			Confidence: 0.65,
		},
	}
}

func hasNineDigits(s string) bool {
	return len(digitsOnly(s)) == 9
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// digitBounded marks r as matching only outside digit runs and compiles
// its anchored form.
func digitBounded(r DetectionRule) DetectionRule {
	r.DigitBoundary = true
	r.bounded = boundedPattern(r.Pattern)
	return r
}

// boundedPattern anchors p and requires a non-digit or the end of text
// after it. Leftmost-first matching then picks the same alternative a
// backtracking engine would pick for p followed by a negative digit
// lookahead.
func boundedPattern(p *regexp.Regexp) *regexp.Regexp {
	return regexp.MustCompile(`^(` + p.String() + `)(?:[^0-9]|$)`)
}

// canStartNumber reports whether b can open a phone-like token.
func canStartNumber(b byte) bool {
	return isDigit(b) || b == '+' || b == '('
}
