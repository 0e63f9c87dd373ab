package prompt

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// mentionsCharacter reports whether name appears in text as a case-insensitive
// whole word. Word boundaries are decided grapheme-cluster by grapheme-cluster
// (rather than byte-by-byte) so multi-byte punctuation and combining marks
// around a name don't produce a false boundary mismatch.
func mentionsCharacter(text, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	lowerText := strings.ToLower(text)
	lowerName := strings.ToLower(name)

	start := 0
	for {
		idx := strings.Index(lowerText[start:], lowerName)
		if idx == -1 {
			return false
		}
		matchStart := start + idx
		matchEnd := matchStart + len(lowerName)

		if isWordBoundary(lowerText, matchStart) && isWordBoundary(lowerText, matchEnd) {
			return true
		}
		start = matchStart + 1
		if start >= len(lowerText) {
			return false
		}
	}
}

// isWordBoundary reports whether byte offset pos in s sits on a grapheme
// cluster boundary where at least one of the two clusters on either side
// (if any) is not a letter or digit: the edge of a "word" rather than the
// middle of one.
func isWordBoundary(s string, pos int) bool {
	if pos <= 0 || pos >= len(s) {
		return true
	}

	// Walk grapheme clusters to find the one immediately before pos, since
	// pos may fall mid-cluster for combining characters.
	rest := s
	offset := 0
	var before string
	for len(rest) > 0 {
		cluster, remainder, _, _ := uniseg.FirstGraphemeClusterInString(rest, -1)
		if offset+len(cluster) >= pos {
			before = cluster
			break
		}
		offset += len(cluster)
		rest = remainder
	}

	after, _, _, _ := uniseg.FirstGraphemeClusterInString(s[pos:], -1)

	return !isWordRune(before) || !isWordRune(after)
}

func isWordRune(cluster string) bool {
	if cluster == "" {
		return false
	}
	r := []rune(cluster)[0]
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
