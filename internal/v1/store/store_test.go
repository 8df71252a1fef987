package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopAcceptsAnyRecord(t *testing.T) {
	var s SessionStore = Noop{}
	err := s.SaveSession(context.Background(), &SessionRecord{
		SessionID: "s1",
		RoomID:    "room01",
		HostID:    "u1",
		Mode:      "private",
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		Rounds: []RoundRecord{{
			RoundNumber:  0,
			DrawerUserID: "u1",
			Word:         "apple",
			ScoresJSON:   []byte(`{"u1":800,"u2":800}`),
		}},
	})
	assert.NoError(t, err)
	s.Close()
}
