package game

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/store"
)

// Phase pauses and windows.
const (
	inputQueueSize    = 512
	startingPause     = 3 * time.Second
	wordSelectWindow  = 15 * time.Second
	turnEndPause      = 5 * time.Second
	roundEndPause     = 8 * time.Second
	finishedPause     = 8 * time.Second
	admitReplyTimeout = 5 * time.Second
	drawOpsPerSecond  = 120
)

// ErrRoomClosed is returned when enqueueing into a room whose consumer has
// stopped.
var ErrRoomClosed = errors.New("room closed")

// CodeError carries a client-visible ErrorCode through an error return.
type CodeError ErrorCode

func (e CodeError) Error() string { return string(e) }

// Code extracts the ErrorCode from an error, defaulting to bad_request.
func Code(err error) ErrorCode {
	var ce CodeError
	if errors.As(err, &ce) {
		return ErrorCode(ce)
	}
	return ErrBadRequest
}

// WordSource supplies word choices for drawers.
type WordSource interface {
	Pick(language string, n int) []string
	PickFrom(list []string, n int) []string
}

// RoomConfig wires a room's collaborators. Clock, WordSource and
// SessionStore are injected so tests can fake them.
type RoomConfig struct {
	ID         RoomID
	InviteCode string
	IsPrivate  bool
	HostID     UserID
	Settings   Settings
	Clock      clock.Clock
	Words      WordSource
	Store      store.SessionStore
	Filter     *WordFilter
	Grace      time.Duration
	// OnPlayerRemoved and OnEmpty notify the registry; both are invoked
	// from the room's consumer goroutine and must only enqueue.
	OnPlayerRemoved func(UserID)
	OnEmpty         func(RoomID)
}

// Room owns all state for one game. Every field below input is owned by the
// consumer goroutine; the atomics are the only state readable from outside.
type Room struct {
	cfg   RoomConfig
	input chan command
	done  chan struct{}

	players  map[UserID]*Player
	order    []UserID
	hostID   UserID
	settings Settings

	status     RoomStatus
	turnOrder  []UserID
	turnIdx    int
	roundIndex int
	turn       *turnState
	turnID     int

	lobby  lobby
	canvas CanvasLog
	rng    *rand.Rand

	// phaseDeadline drives the waiting-free states: starting,
	// word_selection, turn_end, round_end, finished.
	phaseDeadline time.Time

	votesKick map[UserID]map[UserID]struct{}
	votesSkip map[UserID]struct{}

	session sessionAccum

	// Read by the registry without entering the consumer.
	playerCount  atomic.Int32
	statusShared atomic.Value // RoomStatus
	lastActivity atomic.Int64 // unix ms
}

// turnState holds per-turn data while status is word_selection or drawing.
type turnState struct {
	drawerID    UserID
	word        string
	choices     []string
	totalMs     int64
	startedAt   time.Time
	hints       *HintScheduler
	revealed    []Hint
	guessed     []UserID
	drawWindow  time.Time
	drawsInWin  int
}

// sessionAccum gathers the record persisted at game end.
type sessionAccum struct {
	id        string
	startedAt time.Time
	rounds    []store.RoundRecord
}

type command any

type cmdClientEvent struct {
	userID UserID
	msg    *ClientMessage
}

type cmdAdmit struct {
	info   PlayerInfo
	sender Sender
	reply  chan error
}

type cmdResume struct {
	info   PlayerInfo
	sender Sender
	reply  chan error
}

type cmdDisconnect struct{ userID UserID }

type cmdLeave struct{ userID UserID }

type cmdStop struct{}

// NewRoom constructs a room in the waiting state. Run must be called to
// start its consumer.
func NewRoom(cfg RoomConfig) *Room {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Store == nil {
		cfg.Store = store.Noop{}
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 120 * time.Second
	}
	r := &Room{
		cfg:      cfg,
		input:    make(chan command, inputQueueSize),
		done:     make(chan struct{}),
		players:  make(map[UserID]*Player),
		hostID:   cfg.HostID,
		settings: cfg.Settings,
		status:   StatusWaiting,
		lobby:    lobby{filter: cfg.Filter},
		rng:      rand.New(rand.NewSource(seedFromRoomID(cfg.ID))),
		votesKick: make(map[UserID]map[UserID]struct{}),
		votesSkip: make(map[UserID]struct{}),
	}
	r.statusShared.Store(StatusWaiting)
	r.touch()
	return r
}

func seedFromRoomID(id RoomID) int64 {
	var seed int64
	for _, r := range string(id) {
		seed = seed*36 + int64(r)
	}
	return seed ^ time.Now().UnixNano()
}

// ID returns the room id.
func (r *Room) ID() RoomID { return r.cfg.ID }

// InviteCode returns the private invite code, empty for public rooms.
func (r *Room) InviteCode() string { return r.cfg.InviteCode }

// IsPrivate reports room visibility.
func (r *Room) IsPrivate() bool { return r.cfg.IsPrivate }

// PlayerCount reports the current member count. Safe from any goroutine.
func (r *Room) PlayerCount() int { return int(r.playerCount.Load()) }

// Status reports the current lifecycle state. Safe from any goroutine.
func (r *Room) Status() RoomStatus { return r.statusShared.Load().(RoomStatus) }

// MaxPlayers reports the configured capacity. Settings only change while
// waiting, which is also the only joinable state, so a stale read is benign.
func (r *Room) MaxPlayers() int { return r.settings.MaxPlayers }

// LastActivity reports when the room last processed an event.
func (r *Room) LastActivity() time.Time {
	return time.UnixMilli(r.lastActivity.Load())
}

func (r *Room) touch() {
	r.lastActivity.Store(r.cfg.Clock.Now().UnixMilli())
}

// Run is the room's single consumer. It processes one command at a time and
// multiplexes a one-second ticker for all time-driven transitions.
func (r *Room) Run(ctx context.Context) {
	ticker := r.cfg.Clock.Ticker(time.Second)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.input:
			if _, ok := cmd.(cmdStop); ok {
				return
			}
			r.dispatch(ctx, cmd)
		case <-ticker.C:
			r.onTick(ctx)
		}
	}
}

// dispatch applies one command, catching panics so a single bad event can
// never take the room down.
func (r *Room) dispatch(ctx context.Context, cmd command) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(ctx, "Room consumer panic",
				zap.String("roomId", string(r.cfg.ID)),
				zap.Int("turnId", r.turnID),
				zap.Any("panic", rec))
			if r.status == StatusWordSelection || r.status == StatusDrawing {
				r.endTurn(ctx, EndCancelled)
			}
		}
	}()

	switch c := cmd.(type) {
	case cmdClientEvent:
		r.touch()
		start := r.cfg.Clock.Now()
		r.routeClientEvent(ctx, c.userID, c.msg)
		metrics.MessageProcessingDuration.WithLabelValues(string(c.msg.Event)).
			Observe(r.cfg.Clock.Now().Sub(start).Seconds())
	case cmdAdmit:
		r.touch()
		c.reply <- r.admit(ctx, c.info, c.sender)
	case cmdResume:
		r.touch()
		c.reply <- r.resume(ctx, c.info, c.sender)
	case cmdDisconnect:
		r.handleDisconnect(ctx, c.userID)
	case cmdLeave:
		r.touch()
		r.removePlayer(ctx, c.userID, "left")
	}
}

// Enqueue delivers one decoded client event to the room. Non-blocking: a
// full queue drops the event and reports false.
func (r *Room) Enqueue(userID UserID, msg *ClientMessage) bool {
	select {
	case r.input <- cmdClientEvent{userID: userID, msg: msg}:
		return true
	case <-r.done:
		return false
	default:
		metrics.DroppedInboundCommands.Inc()
		return false
	}
}

// Admit asks the room to add a player. Blocks the calling connection
// goroutine until the consumer replies, never the registry.
func (r *Room) Admit(info PlayerInfo, sender Sender) error {
	return r.ask(cmdAdmit{info: info, sender: sender, reply: make(chan error, 1)})
}

// Resume re-attaches a reconnecting player within the grace window.
func (r *Room) Resume(info PlayerInfo, sender Sender) error {
	return r.ask(cmdResume{info: info, sender: sender, reply: make(chan error, 1)})
}

func (r *Room) ask(cmd command) error {
	var reply chan error
	switch c := cmd.(type) {
	case cmdAdmit:
		reply = c.reply
	case cmdResume:
		reply = c.reply
	}
	select {
	case r.input <- cmd:
	case <-r.done:
		return ErrRoomClosed
	case <-time.After(admitReplyTimeout):
		return ErrRoomClosed
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	case <-time.After(admitReplyTimeout):
		return ErrRoomClosed
	}
}

// NotifyDisconnect moves a player into the grace state.
func (r *Room) NotifyDisconnect(userID UserID) {
	select {
	case r.input <- cmdDisconnect{userID: userID}:
	case <-r.done:
	}
}

// RequestLeave removes a player on their own initiative.
func (r *Room) RequestLeave(userID UserID) {
	select {
	case r.input <- cmdLeave{userID: userID}:
	case <-r.done:
	}
}

// Stop shuts the consumer down.
func (r *Room) Stop() {
	select {
	case r.input <- cmdStop{}:
	case <-r.done:
	}
}

// --- admission, resumption, removal ---

func (r *Room) admit(ctx context.Context, info PlayerInfo, sender Sender) error {
	if p, ok := r.players[info.UserID]; ok {
		// Same identity reconnecting through a fresh join.
		return r.reattach(ctx, p, info, sender)
	}
	if len(r.players) >= r.settings.MaxPlayers {
		return CodeError(ErrRoomFull)
	}
	inGame := r.status != StatusWaiting
	if inGame && !r.settings.AllowMidGameJoin {
		return CodeError(ErrGameInProgress)
	}

	now := r.cfg.Clock.Now()
	p := &Player{
		Info:      info,
		Sender:    sender,
		Conn:      ConnConnected,
		JoinedAt:  now,
		JoinRound: -1,
	}
	if inGame {
		p.JoinRound = r.roundIndex
		r.turnOrder = append(r.turnOrder, info.UserID)
	}
	r.players[info.UserID] = p
	r.order = append(r.order, info.UserID)
	r.playerCount.Store(int32(len(r.players)))
	metrics.RoomPlayers.WithLabelValues(string(r.cfg.ID)).Set(float64(len(r.players)))

	if r.cfg.IsPrivate && r.hostID == "" {
		r.hostID = info.UserID
	}

	r.broadcastExcept(info.UserID, EvPlayerJoined, r.snapshotPlayer(p))
	if r.status == StatusWaiting {
		msg := r.lobby.addSystem(info.DisplayName+" joined the room", now)
		r.broadcast(EvLobbyMessage, msg)
	}
	if r.cfg.IsPrivate && len(r.players) == 1 {
		r.sendTo(p, EvRoomCreated, RoomCreatedPayload{
			Room:       r.snapshotRoom(p),
			InviteCode: r.cfg.InviteCode,
		})
	} else {
		r.sendTo(p, EvRoomJoined, r.snapshotRoom(p))
	}
	if r.status == StatusDrawing {
		r.sendTo(p, EvCanvasState, CanvasStatePayload{Ops: r.canvas.Ops()})
	}

	logging.Info(ctx, "Player admitted",
		zap.String("roomId", string(r.cfg.ID)),
		zap.String("userId", string(info.UserID)))
	return nil
}

func (r *Room) resume(ctx context.Context, info PlayerInfo, sender Sender) error {
	p, ok := r.players[info.UserID]
	if !ok {
		return CodeError(ErrPlayerNotFound)
	}
	return r.reattach(ctx, p, info, sender)
}

// reattach swaps in a new connection for an existing player and replays
// enough state for the client to render the room.
func (r *Room) reattach(ctx context.Context, p *Player, info PlayerInfo, sender Sender) error {
	if p.Sender != nil && p.Sender != sender {
		p.Sender.Close("")
	}
	p.Sender = sender
	p.Conn = ConnConnected
	p.GraceUntil = time.Time{}
	p.Info = info

	r.sendTo(p, EvRoomJoined, r.snapshotRoom(p))
	if r.status == StatusDrawing {
		r.sendTo(p, EvCanvasState, CanvasStatePayload{Ops: r.canvas.Ops()})
	}
	logging.Info(ctx, "Player resumed",
		zap.String("roomId", string(r.cfg.ID)),
		zap.String("userId", string(p.Info.UserID)))
	return nil
}

func (r *Room) handleDisconnect(ctx context.Context, userID UserID) {
	p, ok := r.players[userID]
	if !ok || p.Conn != ConnConnected {
		return
	}
	p.Conn = ConnGrace
	p.Sender = nil
	p.GraceUntil = r.cfg.Clock.Now().Add(r.cfg.Grace)
	logging.Info(ctx, "Player entered disconnect grace",
		zap.String("roomId", string(r.cfg.ID)),
		zap.String("userId", string(userID)))
}

func (r *Room) removePlayer(ctx context.Context, userID UserID, reason string) {
	p, ok := r.players[userID]
	if !ok {
		return
	}
	wasDrawer := p.IsDrawer
	if p.Sender != nil {
		p.Sender.Close("")
	}
	delete(r.players, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.removeFromTurnOrder(userID)
	r.dropVotesBy(userID)
	r.playerCount.Store(int32(len(r.players)))
	metrics.RoomPlayers.WithLabelValues(string(r.cfg.ID)).Set(float64(len(r.players)))

	if r.cfg.OnPlayerRemoved != nil {
		r.cfg.OnPlayerRemoved(userID)
	}

	r.broadcast(EvPlayerLeft, PlayerLeftPayload{UserID: userID, Reason: reason})
	now := r.cfg.Clock.Now()
	if r.status == StatusWaiting {
		msg := r.lobby.addSystem(p.Info.DisplayName+" left the room", now)
		r.broadcast(EvLobbyMessage, msg)
	}

	if len(r.players) == 0 {
		r.lobby.clear()
		r.canvas.Clear()
		if r.cfg.OnEmpty != nil {
			r.cfg.OnEmpty(r.cfg.ID)
		}
		return
	}

	if r.hostID == userID && r.cfg.IsPrivate {
		r.hostID = r.order[0]
		msg := r.lobby.addSystem(r.players[r.hostID].Info.DisplayName+" is now the host", now)
		if r.status == StatusWaiting {
			r.broadcast(EvLobbyMessage, msg)
		}
	}

	switch r.status {
	case StatusWordSelection, StatusDrawing:
		if wasDrawer {
			r.endTurn(ctx, EndDrawerLeft)
		} else if r.allNonDrawersGuessed() {
			r.endTurn(ctx, EndAllGuessed)
		} else {
			r.checkVoteSkip(ctx)
		}
	}

	// A game cannot continue below two players.
	if len(r.players) < 2 && r.status != StatusWaiting {
		r.finishGame(ctx)
	}
}

func (r *Room) removeFromTurnOrder(userID UserID) {
	for i, id := range r.turnOrder {
		if id != userID {
			continue
		}
		r.turnOrder = append(r.turnOrder[:i], r.turnOrder[i+1:]...)
		if i < r.turnIdx {
			r.turnIdx--
		}
		return
	}
}

func (r *Room) turnOrderIndex(userID UserID) int {
	for i, id := range r.turnOrder {
		if id == userID {
			return i
		}
	}
	return -1
}

// drawerAbsent reports whether the current drawer has no live connection.
func (r *Room) drawerAbsent() bool {
	if r.turn == nil {
		return false
	}
	p, ok := r.players[r.turn.drawerID]
	return !ok || p.Conn != ConnConnected
}

// --- ticker ---

func (r *Room) onTick(ctx context.Context) {
	now := r.cfg.Clock.Now()

	for _, id := range append([]UserID(nil), r.order...) {
		p, ok := r.players[id]
		if !ok || p.Conn != ConnGrace {
			continue
		}
		if !now.Before(p.GraceUntil) {
			r.removePlayer(ctx, id, "timeout")
		}
	}

	switch r.status {
	case StatusStarting:
		if !now.Before(r.phaseDeadline) {
			r.beginGame(ctx)
		}
	case StatusWordSelection:
		if !now.Before(r.phaseDeadline) {
			// A disconnected drawer does not get a turn held open past the
			// selection window; their membership grace keeps running.
			if r.drawerAbsent() {
				r.endTurn(ctx, EndDrawerLeft)
				return
			}
			// Auto-pick the first choice.
			r.startDrawing(ctx, r.turn.choices[0])
		}
	case StatusDrawing:
		remaining := r.turn.totalMs - now.Sub(r.turn.startedAt).Milliseconds()
		if remaining <= 0 {
			reason := EndTimeUp
			if r.drawerAbsent() {
				reason = EndDrawerLeft
			}
			r.endTurn(ctx, reason)
			return
		}
		r.broadcast(EvTimerUpdate, TimerUpdatePayload{RemainingMs: remaining})
		r.fireDueHints(remaining)
	case StatusTurnEnd:
		if !now.Before(r.phaseDeadline) {
			r.advanceAfterTurn(ctx)
		}
	case StatusRoundEnd:
		if !now.Before(r.phaseDeadline) {
			r.advanceAfterRound(ctx)
		}
	case StatusFinished:
		if !now.Before(r.phaseDeadline) {
			r.resetToWaiting()
		}
	}
}

// --- outbound helpers ---

func (r *Room) broadcast(event EventType, payload any) {
	for _, id := range r.order {
		if p := r.players[id]; p != nil && p.Sender != nil {
			p.Sender.Send(event, payload)
		}
	}
}

func (r *Room) broadcastExcept(except UserID, event EventType, payload any) {
	for _, id := range r.order {
		if id == except {
			continue
		}
		if p := r.players[id]; p != nil && p.Sender != nil {
			p.Sender.Send(event, payload)
		}
	}
}

func (r *Room) sendTo(p *Player, event EventType, payload any) {
	if p.Sender != nil {
		p.Sender.Send(event, payload)
	}
}

func (r *Room) sendError(p *Player, code ErrorCode, msg string) {
	r.sendTo(p, EvError, ErrorPayload{Code: code, Msg: msg})
}

func (r *Room) setStatus(s RoomStatus) {
	r.status = s
	r.statusShared.Store(s)
}

// sessionID lazily allocates the persisted session id.
func (r *Room) sessionID() string {
	if r.session.id == "" {
		r.session.id = uuid.NewString()
	}
	return r.session.id
}
