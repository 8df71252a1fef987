// Package registry owns the global room table: creation, admission,
// invite codes, the user-to-room index and idle eviction. It never touches
// room state directly; rooms are reached only through their input channels.
package registry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/store"
)

const (
	roomIDLength     = 6
	inviteCodeLength = 8
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	// maxAllocAttempts collisions in a row means the id space is saturated.
	maxAllocAttempts = 32

	sweepInterval  = 60 * time.Second
	defaultIdleMax = 30 * time.Minute
)

// Config wires the registry's collaborators, shared by every room it creates.
type Config struct {
	Clock   clock.Clock
	Words   game.WordSource
	Store   store.SessionStore
	Filter  *game.WordFilter
	Grace   time.Duration
	IdleMax time.Duration
}

// Registry is the only globally shared mutable state in the server. Its
// lock guards two maps and a set; all operations under it are short.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	rooms    map[game.RoomID]*game.Room
	order    []game.RoomID // insertion order, newest last
	public   set.Set[string]
	invites  map[string]game.RoomID
	userRoom map[game.UserID]game.RoomID

	runCtx    context.Context
	runCancel context.CancelFunc
	rng       *rand.Rand
}

// New constructs a registry. Close must be called to stop room consumers.
func New(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Store == nil {
		cfg.Store = store.Noop{}
	}
	if cfg.IdleMax <= 0 {
		cfg.IdleMax = defaultIdleMax
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:       cfg,
		rooms:     make(map[game.RoomID]*game.Room),
		public:    set.New[string](),
		invites:   make(map[string]game.RoomID),
		userRoom:  make(map[game.UserID]game.RoomID),
		runCtx:    ctx,
		runCancel: cancel,
		rng:       rand.New(rand.NewSource(cfg.Clock.Now().UnixNano())),
	}
}

// Close stops every room consumer.
func (r *Registry) Close() {
	r.runCancel()
}

// Lookup resolves a user to their current room in O(1).
func (r *Registry) Lookup(userID game.UserID) *game.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if roomID, ok := r.userRoom[userID]; ok {
		return r.rooms[roomID]
	}
	return nil
}

// RoomCount reports the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// JoinPublic admits the player into an open public room, creating one when
// none has space. Public rooms are scanned newest-first so small rooms fill
// before new ones spawn.
func (r *Registry) JoinPublic(info game.PlayerInfo, sender game.Sender) (*game.Room, error) {
	if room := r.Lookup(info.UserID); room != nil {
		// Already a member somewhere; treat as a resume.
		if err := room.Resume(info, sender); err != nil {
			return nil, err
		}
		return room, nil
	}

	room := r.findOpenPublicRoom()
	if room == nil {
		var err error
		room, err = r.createRoom(game.DefaultPublicSettings(), "", "")
		if err != nil {
			return nil, err
		}
	}
	return r.admit(room, info, sender)
}

func (r *Registry) findOpenPublicRoom() *game.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		if !r.public.Has(string(id)) {
			continue
		}
		room := r.rooms[id]
		if room == nil {
			continue
		}
		if room.Status() == game.StatusWaiting && room.PlayerCount() < room.MaxPlayers() {
			return room
		}
	}
	return nil
}

// CreatePrivate allocates a private room with the host's settings patch
// applied and admits the host.
func (r *Registry) CreatePrivate(info game.PlayerInfo, sender game.Sender, patch *game.SettingsPatch) (*game.Room, error) {
	if room := r.Lookup(info.UserID); room != nil {
		if err := room.Resume(info, sender); err != nil {
			return nil, err
		}
		return room, nil
	}

	settings, err := game.DefaultPrivateSettings().Apply(patch)
	if err != nil {
		return nil, game.CodeError(game.ErrInvalidSettings)
	}
	room, err := r.createRoom(settings, r.allocInviteCode(), info.UserID)
	if err != nil {
		return nil, err
	}
	return r.admit(room, info, sender)
}

// JoinPrivate resolves an invite code and admits the player.
func (r *Registry) JoinPrivate(info game.PlayerInfo, sender game.Sender, code string) (*game.Room, error) {
	if room := r.Lookup(info.UserID); room != nil {
		if err := room.Resume(info, sender); err != nil {
			return nil, err
		}
		return room, nil
	}

	r.mu.RLock()
	roomID, ok := r.invites[code]
	room := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok || room == nil {
		return nil, game.CodeError(game.ErrRoomNotFound)
	}
	return r.admit(room, info, sender)
}

// Resume re-attaches a reconnecting user to their room, if any.
func (r *Registry) Resume(info game.PlayerInfo, sender game.Sender) (*game.Room, error) {
	room := r.Lookup(info.UserID)
	if room == nil {
		return nil, game.CodeError(game.ErrRoomNotFound)
	}
	if err := room.Resume(info, sender); err != nil {
		return nil, err
	}
	return room, nil
}

// Leave removes the user from their room on their own request.
func (r *Registry) Leave(userID game.UserID) {
	if room := r.Lookup(userID); room != nil {
		room.RequestLeave(userID)
	}
}

// admit indexes the user then asks the room; a rejection rolls the index
// back. Indexing first keeps the one-room-per-user invariant under races.
func (r *Registry) admit(room *game.Room, info game.PlayerInfo, sender game.Sender) (*game.Room, error) {
	r.mu.Lock()
	if existing, ok := r.userRoom[info.UserID]; ok && existing != room.ID() {
		r.mu.Unlock()
		return nil, game.CodeError(game.ErrBadRequest)
	}
	r.userRoom[info.UserID] = room.ID()
	r.mu.Unlock()

	if err := room.Admit(info, sender); err != nil {
		r.mu.Lock()
		if r.userRoom[info.UserID] == room.ID() {
			delete(r.userRoom, info.UserID)
		}
		r.mu.Unlock()
		return nil, err
	}
	return room, nil
}

func (r *Registry) createRoom(settings game.Settings, inviteCode string, hostID game.UserID) (*game.Room, error) {
	roomID, err := r.allocRoomID()
	if err != nil {
		return nil, err
	}

	room := game.NewRoom(game.RoomConfig{
		ID:         roomID,
		InviteCode: inviteCode,
		IsPrivate:  inviteCode != "",
		HostID:     hostID,
		Settings:   settings,
		Clock:      r.cfg.Clock,
		Words:      r.cfg.Words,
		Store:      r.cfg.Store,
		Filter:     r.cfg.Filter,
		Grace:      r.cfg.Grace,
		OnPlayerRemoved: func(userID game.UserID) {
			r.mu.Lock()
			if r.userRoom[userID] == roomID {
				delete(r.userRoom, userID)
			}
			r.mu.Unlock()
		},
		OnEmpty: func(id game.RoomID) {
			// Runs on the room's consumer; removal must not re-enter it.
			go r.removeRoom(id)
		},
	})

	r.mu.Lock()
	r.rooms[roomID] = room
	r.order = append(r.order, roomID)
	if inviteCode == "" {
		r.public.Insert(string(roomID))
	} else {
		r.invites[inviteCode] = roomID
	}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
	r.mu.Unlock()

	go room.Run(r.runCtx)

	logging.Info(context.Background(), "Room created",
		zap.String("roomId", string(roomID)),
		zap.Bool("private", inviteCode != ""))
	return room, nil
}

func (r *Registry) removeRoom(id game.RoomID) {
	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, id)
	r.public.Delete(string(id))
	for code, rid := range r.invites {
		if rid == id {
			delete(r.invites, code)
		}
	}
	for i, rid := range r.order {
		if rid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for userID, rid := range r.userRoom {
		if rid == id {
			delete(r.userRoom, userID)
		}
	}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
	r.mu.Unlock()

	room.Stop()
	metrics.RoomPlayers.DeleteLabelValues(string(id))
	logging.Info(context.Background(), "Room removed", zap.String("roomId", string(id)))
}

// RunSweeper evicts empty rooms that have been idle past the configured
// maximum. Blocks until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := r.cfg.Clock.Ticker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := r.cfg.Clock.Now().Add(-r.cfg.IdleMax)

	r.mu.RLock()
	var idle []game.RoomID
	for id, room := range r.rooms {
		if room.PlayerCount() == 0 && room.LastActivity().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		r.removeRoom(id)
	}
}

// --- id allocation ---

func (r *Registry) allocRoomID() (game.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		id := game.RoomID(r.randomBase36(roomIDLength))
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
	logging.Error(context.Background(), "Room id space saturated",
		zap.Int("attempts", maxAllocAttempts))
	return "", game.CodeError(game.ErrRoomNotFound)
}

func (r *Registry) allocInviteCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		code := r.randomBase36(inviteCodeLength)
		if _, taken := r.invites[code]; !taken {
			return code
		}
	}
}

// randomBase36 draws from the caller-locked rng.
func (r *Registry) randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[r.rng.Intn(len(base36Alphabet))]
	}
	return string(b)
}
