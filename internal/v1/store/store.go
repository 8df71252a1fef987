// Package store persists completed game sessions. Persistence is best
// effort and never blocks gameplay.
package store

import (
	"context"
	"time"
)

// ParticipantRecord is one player's final standing in a session.
type ParticipantRecord struct {
	UserID         string
	DisplayName    string
	FinalScore     int
	FinalRank      int
	CorrectGuesses int
	// BestGuessMs is the player's fastest correct guess; zero when the
	// player never guessed correctly.
	BestGuessMs int64
	JoinedAt    time.Time
	LeftAt      *time.Time
}

// RoundRecord is one completed drawing turn.
type RoundRecord struct {
	RoundNumber    int
	DrawerUserID   string
	Word           string
	CorrectGuesses int
	// ScoresJSON maps user id to the points earned during this turn,
	// drawer included.
	ScoresJSON []byte
	StartedAt  time.Time
	EndedAt    time.Time
}

// SessionRecord is a finished game, written once when the game reaches
// its final state.
type SessionRecord struct {
	SessionID string
	RoomID    string
	// HostID is empty for public rooms, which have no host.
	HostID       string
	Mode         string // "public" or "private"
	Settings     []byte
	StartedAt    time.Time
	EndedAt      time.Time
	Participants []ParticipantRecord
	Rounds       []RoundRecord
}

// SessionStore saves finished sessions. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
	Close()
}

// Noop discards all writes. Used when no database is configured.
type Noop struct{}

func (Noop) SaveSession(context.Context, *SessionRecord) error { return nil }
func (Noop) Close()                                            {}
