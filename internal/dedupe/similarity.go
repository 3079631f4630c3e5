package dedupe

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lowerCaser = cases.Lower(language.Und)

// qualityTokens are stripped during normalize() because they describe
// the encode, not the song, and would otherwise depress similarity
// between two copies of the same track at different bitrates.
var qualityTokens = map[string]bool{
	"320": true, "256": true, "192": true, "128": true,
	"v0": true, "v2": true, "vbr": true, "cbr": true,
	"flac": true, "mp3": true, "aac": true, "m4a": true,
}

// normalize prepares a title for fuzzy comparison: Unicode NFC fold,
// lowercase, strip bracketed parentheticals, fold separators to
// spaces, drop quality-indicator tokens, collapse whitespace.
func normalize(title string) string {
	s := norm.NFC.String(title)
	s = lowerCaser.String(s)
	s = stripBracketed(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if !qualityTokens[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// stripBracketed removes bracketed/parenthesized spans like
// "[320kbps]" or "(Radio Edit)", matching either delimiter pair
// independently since inputs are not always well-formed.
func stripBracketed(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// similarity computes the Ratcliff/Obershelp ratio between a and b:
// twice the total length of matching, non-overlapping substrings
// (found recursively on either side of the longest common substring)
// divided by the combined length of both strings. Equivalent to
// Python's difflib.SequenceMatcher.ratio() ("gestalt pattern
// matching").
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	matches := matchingLength(a, b)
	return 2.0 * float64(matches) / float64(len(a)+len(b))
}

// matchingLength returns the total length of matching blocks between
// a and b via the standard Ratcliff/Obershelp recursion: find the
// longest common substring, then recurse on the unmatched prefix and
// suffix on either side of it.
func matchingLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aStart, bStart, length := longestCommonSubstring(a, b)
	if length == 0 {
		return 0
	}
	left := matchingLength(a[:aStart], b[:bStart])
	right := matchingLength(a[aStart+length:], b[bStart+length:])
	return left + length + right
}

// longestCommonSubstring returns the start offsets in a and b and the
// length of their longest common contiguous substring, using dynamic
// programming in O(len(a)*len(b)) — fine for title-length strings.
func longestCommonSubstring(a, b string) (aStart, bStart, length int) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > length {
					length = curr[j]
					aStart = i - length
					bStart = j - length
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return aStart, bStart, length
}
