// Package extract pulls structured identifiers out of semi-structured,
// human-readable command output. The platform's output format is not a
// stable contract, so each extraction site supplies an ordered list of
// candidate patterns and the first non-empty capture wins.
package extract

import "regexp"

// Pattern is one candidate matcher. Name identifies the pattern in logs so
// fallback hits are visible.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// MustPattern compiles expr into a named Pattern, panicking on invalid
// expressions; intended for package-level pattern tables.
func MustPattern(name, expr string) Pattern {
	return Pattern{Name: name, Re: regexp.MustCompile(expr)}
}

// First applies patterns in order against text and returns the first
// non-empty capture group. It never fails hard: when nothing matches it
// returns ok=false so callers can degrade gracefully.
func First(text string, patterns []Pattern) (value string, pattern string, ok bool) {
	for _, p := range patterns {
		m := p.Re.FindStringSubmatch(text)
		if len(m) > 1 && m[1] != "" {
			return m[1], p.Name, true
		}
	}
	return "", "", false
}
