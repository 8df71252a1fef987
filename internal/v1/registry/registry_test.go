package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSender struct {
	mu     sync.Mutex
	events []game.EventType
}

func (s *stubSender) Send(event game.EventType, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *stubSender) Close(_ game.ErrorCode) {}

type stubWords struct{}

func (stubWords) Pick(_ string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("word%d", i)
	}
	return out
}

func (stubWords) PickFrom(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	return list[:n]
}

func newTestRegistry() (*Registry, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	r := New(Config{Clock: mock, Words: stubWords{}})
	return r, mock
}

func info(id string) game.PlayerInfo {
	return game.PlayerInfo{UserID: game.UserID(id), DisplayName: id}
}

func TestJoinPublicFillsBeforeCreating(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	first, err := r.JoinPublic(info("u0"), &stubSender{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.RoomCount())
	assert.Len(t, string(first.ID()), 6)

	// The next seven players land in the same room.
	for i := 1; i < 8; i++ {
		room, err := r.JoinPublic(info(fmt.Sprintf("u%d", i)), &stubSender{})
		require.NoError(t, err)
		assert.Equal(t, first.ID(), room.ID())
	}
	assert.Equal(t, 8, first.PlayerCount())

	// A ninth player overflows into a fresh room.
	overflow, err := r.JoinPublic(info("u8"), &stubSender{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), overflow.ID())
	assert.Equal(t, 2, r.RoomCount())
}

func TestJoinPublicTwiceResumesExistingMembership(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	room, err := r.JoinPublic(info("u1"), &stubSender{})
	require.NoError(t, err)

	again, err := r.JoinPublic(info("u1"), &stubSender{})
	require.NoError(t, err)
	assert.Equal(t, room.ID(), again.ID())
	assert.Equal(t, 1, room.PlayerCount())
	assert.Equal(t, 1, r.RoomCount())
}

func TestCreateAndJoinPrivate(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	rounds := 5
	room, err := r.CreatePrivate(info("host"), &stubSender{}, &game.SettingsPatch{Rounds: &rounds})
	require.NoError(t, err)
	assert.True(t, room.IsPrivate())
	require.Len(t, room.InviteCode(), 8)

	joined, err := r.JoinPrivate(info("guest"), &stubSender{}, room.InviteCode())
	require.NoError(t, err)
	assert.Equal(t, room.ID(), joined.ID())
	assert.Equal(t, 2, room.PlayerCount())
}

func TestJoinPrivateUnknownCode(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	_, err := r.JoinPrivate(info("guest"), &stubSender{}, "nosuchcd")
	require.Error(t, err)
	assert.Equal(t, game.ErrRoomNotFound, game.Code(err))
}

func TestCreatePrivateRejectsBadSettings(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	rounds := 99
	_, err := r.CreatePrivate(info("host"), &stubSender{}, &game.SettingsPatch{Rounds: &rounds})
	require.Error(t, err)
	assert.Equal(t, game.ErrInvalidSettings, game.Code(err))
	assert.Equal(t, 0, r.RoomCount())
}

func TestPrivateRoomFull(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	maxPlayers := 2
	room, err := r.CreatePrivate(info("host"), &stubSender{}, &game.SettingsPatch{MaxPlayers: &maxPlayers})
	require.NoError(t, err)
	_, err = r.JoinPrivate(info("guest"), &stubSender{}, room.InviteCode())
	require.NoError(t, err)

	_, err = r.JoinPrivate(info("late"), &stubSender{}, room.InviteCode())
	require.Error(t, err)
	assert.Equal(t, game.ErrRoomFull, game.Code(err))
	// The rejected user holds no membership.
	assert.Nil(t, r.Lookup("late"))
}

func TestLookupTracksMembership(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	room, err := r.JoinPublic(info("u1"), &stubSender{})
	require.NoError(t, err)
	require.NotNil(t, r.Lookup("u1"))
	assert.Equal(t, room.ID(), r.Lookup("u1").ID())
	assert.Nil(t, r.Lookup("stranger"))
}

func TestLeaveUnindexesAndEvictsEmptyRoom(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	_, err := r.JoinPublic(info("u1"), &stubSender{})
	require.NoError(t, err)

	r.Leave("u1")

	assert.Eventually(t, func() bool {
		return r.Lookup("u1") == nil
	}, time.Second, 5*time.Millisecond)
	// The last member leaving tears the room down.
	assert.Eventually(t, func() bool {
		return r.RoomCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestResumeWithoutMembership(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	_, err := r.Resume(info("u1"), &stubSender{})
	require.Error(t, err)
	assert.Equal(t, game.ErrRoomNotFound, game.Code(err))
}

func TestSweepEvictsIdleEmptyRooms(t *testing.T) {
	r, mock := newTestRegistry()
	defer r.Close()

	_, err := r.createRoom(game.DefaultPublicSettings(), "", "")
	require.NoError(t, err)
	require.Equal(t, 1, r.RoomCount())

	// Still within the idle window.
	mock.Set(mock.Now().Add(10 * time.Minute))
	r.sweep()
	assert.Equal(t, 1, r.RoomCount())

	mock.Set(mock.Now().Add(25 * time.Minute))
	r.sweep()
	assert.Equal(t, 0, r.RoomCount())
}

func TestRoomIDsAreDistinct(t *testing.T) {
	r, _ := newTestRegistry()
	defer r.Close()

	seen := make(map[game.RoomID]struct{})
	for i := 0; i < 50; i++ {
		room, err := r.createRoom(game.DefaultPublicSettings(), "", "")
		require.NoError(t, err)
		_, dup := seen[room.ID()]
		require.False(t, dup)
		seen[room.ID()] = struct{}{}
	}
}
