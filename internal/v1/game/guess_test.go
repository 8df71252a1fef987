package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGuess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "APPLE", "apple"},
		{"trims and collapses whitespace", "  palm   tree  ", "palmtree"},
		{"strips diacritics", "plátano", "platano"},
		{"removes punctuation", "it's-a_me!", "itsame"},
		{"keeps digits", "route 66", "route66"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeGuess(tt.in))
		})
	}
}

func TestEvaluateGuessCorrect(t *testing.T) {
	assert.Equal(t, VerdictCorrect, EvaluateGuess("apple", "apple"))
	assert.Equal(t, VerdictCorrect, EvaluateGuess(" Apple ", "apple"))
	assert.Equal(t, VerdictCorrect, EvaluateGuess("platano", "plátano"))
}

func TestEvaluateGuessClose(t *testing.T) {
	// One edit away from a target of length >= 4.
	assert.Equal(t, VerdictClose, EvaluateGuess("aple", "apple"))
	assert.Equal(t, VerdictClose, EvaluateGuess("appla", "apple"))
	assert.Equal(t, VerdictClose, EvaluateGuess("apples", "apple"))
}

func TestEvaluateGuessShortTargetsNeverClose(t *testing.T) {
	// "cat" -> "car" is distance 1 but the target is too short.
	assert.Equal(t, VerdictChat, EvaluateGuess("car", "cat"))
}

func TestEvaluateGuessChat(t *testing.T) {
	assert.Equal(t, VerdictChat, EvaluateGuess("banana", "apple"))
	assert.Equal(t, VerdictChat, EvaluateGuess("", "apple"))
	assert.Equal(t, VerdictChat, EvaluateGuess("!!!", "apple"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 1, levenshtein("abc", "ab"))
	assert.Equal(t, 1, levenshtein("abc", "abcd"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
