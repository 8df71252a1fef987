package game

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GuessVerdict classifies a chat line sent during the drawing phase.
type GuessVerdict string

const (
	VerdictCorrect GuessVerdict = "correct"
	VerdictClose   GuessVerdict = "close"
	VerdictChat    GuessVerdict = "chat"
)

// closeGuessMinLen: words shorter than this never produce a close verdict,
// single-edit typos on short words are too easy to brute force.
const closeGuessMinLen = 4

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeGuess lowercases, trims, collapses whitespace, strips diacritics
// and removes every non-alphanumeric rune. Both the candidate and the target
// pass through this before comparison.
func NormalizeGuess(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EvaluateGuess compares a chat line against the secret word.
func EvaluateGuess(candidate, target string) GuessVerdict {
	nc := NormalizeGuess(candidate)
	nt := NormalizeGuess(target)
	if nc == "" || nt == "" {
		return VerdictChat
	}
	if nc == nt {
		return VerdictCorrect
	}
	if len([]rune(nt)) >= closeGuessMinLen && levenshtein(nc, nt) == 1 {
		return VerdictClose
	}
	return VerdictChat
}

// levenshtein computes edit distance over runes with the standard
// two-row dynamic program.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
