package utils

import (
	"regexp"
	"strings"
)

var (
	addressPunct = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

	addressAbbr = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"boulevard": "blvd",
		"road":      "rd",
		"drive":     "dr",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"square":    "sq",
		"crescent":  "cres",
		"terrace":   "ter",
		"parkway":   "pkwy",
		"highway":   "hwy",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
	}
)

// NormalizeAddress normalizes a postal address string for comparison.
// Lowercases, strips punctuation, collapses whitespace and abbreviates
// common street words.
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	n := strings.ToLower(strings.TrimSpace(address))
	n = addressPunct.ReplaceAllString(n, " ")

	words := strings.Fields(n)
	for i, w := range words {
		if a, ok := addressAbbr[w]; ok {
			words[i] = a
		}
	}
	return strings.Join(words, " ")
}

// SameAddress reports whether two addresses normalize to the same non-empty string.
func SameAddress(a, b string) bool {
	na := NormalizeAddress(a)
	return na != "" && na == NormalizeAddress(b)
}
