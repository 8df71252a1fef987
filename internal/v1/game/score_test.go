package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuesserPoints(t *testing.T) {
	// 12s into a 60s turn: round(1000 * (1 - 12/60)) = 800.
	assert.Equal(t, 800, GuesserPoints(12_000, 60_000))
	// Instant guess takes the maximum.
	assert.Equal(t, 1000, GuesserPoints(0, 60_000))
	// Late guesses floor at 200.
	assert.Equal(t, 200, GuesserPoints(59_000, 60_000))
	assert.Equal(t, 200, GuesserPoints(60_000, 60_000))
	// Halfway through an 80s turn.
	assert.Equal(t, 500, GuesserPoints(40_000, 80_000))
}

func TestDrawerPoints(t *testing.T) {
	// Two players, one guesser at 800: round(800 * 1 / 1) = 800.
	assert.Equal(t, 800, DrawerPoints([]int{800}, 2))
	// Four players, two guessers: round(mean(1000,500) * 2/3) = 500.
	assert.Equal(t, 500, DrawerPoints([]int{1000, 500}, 4))
	// Nobody guessed.
	assert.Equal(t, 0, DrawerPoints(nil, 4))
}

func TestWinnersArgmaxSet(t *testing.T) {
	winners := Winners(map[UserID]int{"a": 500, "b": 900, "c": 900})
	assert.Len(t, winners, 2)
	assert.ElementsMatch(t, []UserID{"b", "c"}, winners)

	assert.Equal(t, []UserID{"a"}, Winners(map[UserID]int{"a": 1}))
	assert.Empty(t, Winners(map[UserID]int{}))
}

func TestRankPlayersCompetitionRanking(t *testing.T) {
	ranked := rankPlayers(map[UserID]int{"a": 500, "b": 900, "c": 900, "d": 100})
	assert.Equal(t, 1, ranked[0].rank)
	assert.Equal(t, 1, ranked[1].rank)
	assert.Equal(t, 3, ranked[2].rank)
	assert.Equal(t, UserID("a"), ranked[2].id)
	assert.Equal(t, 4, ranked[3].rank)
}
