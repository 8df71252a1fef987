package game

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/store"
)

func ctxTest() context.Context { return context.Background() }

// mockSender records every event pushed to one player.
type mockSender struct {
	mu     sync.Mutex
	events []sentEvent
	closed bool
	reason ErrorCode
}

type sentEvent struct {
	Event   EventType
	Payload any
}

func (m *mockSender) Send(event EventType, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sentEvent{Event: event, Payload: payload})
}

func (m *mockSender) Close(reason ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.reason = reason
}

func (m *mockSender) eventsOf(event EventType) []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentEvent
	for _, e := range m.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockSender) lastOf(event EventType) (sentEvent, bool) {
	evs := m.eventsOf(event)
	if len(evs) == 0 {
		return sentEvent{}, false
	}
	return evs[len(evs)-1], true
}

func (m *mockSender) count(event EventType) int {
	return len(m.eventsOf(event))
}

func (m *mockSender) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// fakeWords always offers the same deterministic choices.
type fakeWords struct {
	words []string
}

func (f *fakeWords) Pick(language string, n int) []string {
	if n > len(f.words) {
		n = len(f.words)
	}
	return append([]string(nil), f.words[:n]...)
}

func (f *fakeWords) PickFrom(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	return append([]string(nil), list[:n]...)
}

// fakeStore captures every session record handed to it.
type fakeStore struct {
	mu    sync.Mutex
	saved []*store.SessionRecord
}

func (f *fakeStore) SaveSession(_ context.Context, rec *store.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeStore) Close() {}

func (f *fakeStore) records() []*store.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*store.SessionRecord(nil), f.saved...)
}

// testRoom bundles a room with its mock clock for direct-drive tests: the
// consumer goroutine is not started, methods are invoked synchronously.
type testRoom struct {
	room  *Room
	clock *clock.Mock
	store *fakeStore
}

func newTestRoom(settings Settings, private bool) *testRoom {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	invite := ""
	if private {
		invite = "testinvi"
	}
	fs := &fakeStore{}
	r := NewRoom(RoomConfig{
		ID:         "room01",
		InviteCode: invite,
		IsPrivate:  private,
		Settings:   settings,
		Clock:      mock,
		Words:      &fakeWords{words: []string{"apple", "banana", "bridge"}},
		Store:      fs,
		Grace:      120 * time.Second,
	})
	return &testRoom{room: r, clock: mock, store: fs}
}

func (t *testRoom) admit(id UserID, name string) *mockSender {
	s := &mockSender{}
	if err := t.room.admit(ctxTest(), PlayerInfo{UserID: id, DisplayName: name}, s); err != nil {
		panic(err)
	}
	return s
}

// advance moves the mock clock and fires the room's tick handler once per
// elapsed second, mirroring what the real ticker would deliver.
func (t *testRoom) advance(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += time.Second {
		t.clock.Add(time.Second)
		t.room.onTick(ctxTest())
	}
}

func (t *testRoom) event(id UserID, ev EventType, payload string) {
	raw := []byte(payload)
	if payload == "" {
		raw = nil
	}
	t.room.routeClientEvent(ctxTest(), id, &ClientMessage{Event: ev, Payload: raw})
}
