package game

import "math"

// Scoring constants for a correct guess.
const (
	guessPointsMax = 1000.0
	guessPointsMin = 200.0
)

// GuesserPoints returns the points for a correct guess at elapsedMs into a
// turn of totalMs: round(max(200, 1000*(1 - t/T))). Guesses at or past the
// deadline still earn the floor.
func GuesserPoints(elapsedMs, totalMs int64) int {
	if totalMs <= 0 {
		return int(guessPointsMin)
	}
	frac := float64(elapsedMs) / float64(totalMs)
	pts := guessPointsMax * (1 - frac)
	if pts < guessPointsMin {
		pts = guessPointsMin
	}
	return int(math.Round(pts))
}

// DrawerPoints returns the drawer's earnings at turn end:
// round(mean(guesser points) * g / (players-1)), zero when nobody guessed.
func DrawerPoints(guesserPoints []int, playerCount int) int {
	g := len(guesserPoints)
	if g == 0 || playerCount < 2 {
		return 0
	}
	sum := 0
	for _, p := range guesserPoints {
		sum += p
	}
	mean := float64(sum) / float64(g)
	return int(math.Round(mean * float64(g) / float64(playerCount-1)))
}

// Winners returns the argmax set over cumulative scores.
func Winners(scores map[UserID]int) []UserID {
	best := math.MinInt
	var winners []UserID
	for id, s := range scores {
		switch {
		case s > best:
			best = s
			winners = winners[:0]
			winners = append(winners, id)
		case s == best:
			winners = append(winners, id)
		}
	}
	return winners
}
