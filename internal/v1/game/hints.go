package game

import (
	"math/rand"
	"strings"
	"unicode"
)

// HintScheduler plans and fires letter reveals for one turn. Deterministic
// for a given seed so that a turn id reproduces its schedule.
type HintScheduler struct {
	word     []rune
	revealed []bool
	rng      *rand.Rand
	// remainingAtMs[k] is the clock value (ms remaining) at which reveal k
	// fires; sorted descending, consumed front to back.
	remainingAtMs []int64
}

// NewHintScheduler builds the reveal schedule: with H hints over a turn of
// totalMs, reveal k fires when totalMs*k/(H+1) remains on the clock.
func NewHintScheduler(word string, hints int, totalMs int64, seed int64) *HintScheduler {
	runes := []rune(word)
	h := &HintScheduler{
		word:     runes,
		revealed: make([]bool, len(runes)),
		rng:      rand.New(rand.NewSource(seed)),
	}
	for k := hints; k >= 1; k-- {
		h.remainingAtMs = append(h.remainingAtMs, totalMs*int64(k)/int64(hints+1))
	}
	return h
}

// Due reports whether the next scheduled reveal should fire at the given
// clock value and consumes it if so.
func (h *HintScheduler) Due(remainingMs int64) bool {
	if len(h.remainingAtMs) == 0 {
		return false
	}
	if remainingMs > h.remainingAtMs[0] {
		return false
	}
	h.remainingAtMs = h.remainingAtMs[1:]
	return true
}

// Reveal picks a random unrevealed letter position and reveals it, together
// with every other position holding the same glyph. Returns the revealed
// hints, or nil when nothing is left to reveal.
func (h *HintScheduler) Reveal() []Hint {
	var candidates []int
	for i, r := range h.word {
		if !h.revealed[i] && isHintable(r) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	pick := candidates[h.rng.Intn(len(candidates))]
	glyph := unicode.ToLower(h.word[pick])

	var out []Hint
	for i, r := range h.word {
		if !h.revealed[i] && unicode.ToLower(r) == glyph {
			h.revealed[i] = true
			out = append(out, Hint{Index: i, Letter: string(h.word[i])})
		}
	}
	return out
}

// Pattern renders the current word pattern: revealed letters shown,
// unrevealed letters as underscores, whitespace and punctuation preserved.
func (h *HintScheduler) Pattern() string {
	var b strings.Builder
	for i, r := range h.word {
		switch {
		case !isHintable(r):
			b.WriteRune(r)
		case h.revealed[i]:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// MaskWord renders the fully-hidden pattern for a word.
func MaskWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if isHintable(r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isHintable(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
