// Package entity reconstructs counterparty identity from free-text ledger annotations.
package entity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownEntity is the display name of annotations with no recognisable name.
const UnknownEntity = "Unknown Entity"

const (
	keyCutLength      = 50
	keyTokens         = 3
	keyMaxLength      = 20
	keyFallbackLength = 15
)

// Trailing document references, applied in order. Each one removes from its first
// match to the end of the annotation.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*-\s*fattura.*$`),
	regexp.MustCompile(`(?i)\s*-\s*fatt\.?.*$`),
	regexp.MustCompile(`(?i)\s*-\s*doc\.?.*$`),
	regexp.MustCompile(`(?i)\s*-\s*nr\.?.*$`),
	regexp.MustCompile(`(?i)\s*-\s*invoice.*$`),
	regexp.MustCompile(`(?i)\s*fattura.*$`),
	regexp.MustCompile(`(?i)\s*fatt\.?.*$`),
	regexp.MustCompile(`(?i)\s*invoice.*$`),
	regexp.MustCompile(`(?i)\s*doc\.?.*$`),
	regexp.MustCompile(`(?i)\s*nr\.?.*$`),
	regexp.MustCompile(`(?i)\s*no\.\s*\d+.*$`),
	regexp.MustCompile(`(?i)\s*del\s+\d{1,2}/\d{1,2}/\d{4}.*$`),
	regexp.MustCompile(`\s*\d{1,2}/\d{1,2}/\d{4}.*$`),
	regexp.MustCompile(`(?i)\s*n\.\s*\d+.*$`),
	regexp.MustCompile(`\s*#\d+.*$`),
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	leadingAlpha = regexp.MustCompile(`^([a-zA-Z\s]{2,})`)
	nonKeyChars  = regexp.MustCompile(`[^a-z0-9\s]`)
)

var stopWords = map[string]struct{}{
	"di": {}, "del": {}, "dei": {}, "da": {}, "per": {}, "con": {},
	"srl": {}, "spa": {}, "snc": {}, "nr": {},
}

// Name is the parsed counterparty of one annotation.
type Name struct {
	// Display is the cleaned human-readable name.
	Display string `json:"display"`
	// Key is the compact set-membership key used by cohort comparisons.
	Key string `json:"key"`
}

// Unknown reports whether no name could be recovered.
func (n Name) Unknown() bool { return n.Display == UnknownEntity }

// Normalize parses an annotation once. The key is derived from the cleaned display
// name so both projections agree on the same counterparty.
func Normalize(annotation string) Name {
	display := CleanDisplay(annotation)
	if display == UnknownEntity {
		return Name{Display: display}
	}
	return Name{Display: display, Key: CohortKey(display)}
}

// CleanDisplay strips trailing document references and whitespace noise from an
// annotation.
func CleanDisplay(annotation string) string {
	original := strings.TrimSpace(annotation)
	name := original
	for _, re := range referencePatterns {
		name = re.ReplaceAllString(name, "")
	}
	name = whitespace.ReplaceAllString(strings.TrimSpace(name), " ")
	name = strings.TrimSpace(strings.TrimRight(name, ","))
	if len([]rune(name)) >= 2 {
		return name
	}
	if m := leadingAlpha.FindStringSubmatch(original); m != nil {
		if fallback := strings.TrimSpace(m[1]); fallback != "" {
			return whitespace.ReplaceAllString(fallback, " ")
		}
	}
	return UnknownEntity
}

// CohortKey reduces an annotation to at most three significant lower-case tokens.
func CohortKey(annotation string) string {
	relevant := annotation
	if i := strings.IndexByte(relevant, ','); i >= 0 {
		relevant = relevant[:i]
	} else if r := []rune(relevant); len(r) > keyCutLength {
		relevant = string(r[:keyCutLength])
	}

	code := strings.ToLower(strings.TrimSpace(fold(relevant)))
	code = nonKeyChars.ReplaceAllString(code, "")
	code = whitespace.ReplaceAllString(code, " ")

	tokens := make([]string, 0, keyTokens)
	for _, word := range strings.Split(code, " ") {
		if len(word) < 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens = append(tokens, word)
		if len(tokens) == keyTokens {
			break
		}
	}
	if len(tokens) == 0 {
		return truncate(strings.ReplaceAll(code, " ", ""), keyFallbackLength)
	}
	return truncate(strings.Join(tokens, ""), keyMaxLength)
}

// fold maps accented letters to their ASCII base so "Caffè" and "Caffe" share a key.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// truncate cuts ASCII keys; the key alphabet is [a-z0-9] so bytes equal runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
