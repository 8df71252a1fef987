package game

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
)

// routeClientEvent validates and applies one inbound event from a player
// already in this room. Join/create/leave events are handled before the
// room; everything else lands here.
func (r *Room) routeClientEvent(ctx context.Context, userID UserID, msg *ClientMessage) {
	p, ok := r.players[userID]
	if !ok {
		return
	}

	var err error
	switch msg.Event {
	case EvLobbyChat:
		err = r.handleLobbyChat(p, msg.Payload)
	case EvChatMessage:
		err = r.handleChatMessage(ctx, p, msg.Payload)
	case EvUpdateSettings:
		err = r.handleUpdateSettings(p, msg.Payload)
	case EvStartGame:
		err = r.handleStartGame(ctx, p)
	case EvPlayerReady:
		err = r.handlePlayerReady(ctx, p, msg.Payload)
	case EvSelectWord:
		err = r.handleSelectWord(ctx, p, msg.Payload)
	case EvDrawOp:
		err = r.handleDrawOp(p, msg.Payload)
	case EvCanvasClear:
		err = r.handleCanvasClear(p)
	case EvCanvasUndo:
		err = r.handleCanvasUndo(p)
	case EvRequestCanvasSync:
		r.sendTo(p, EvCanvasState, CanvasStatePayload{Ops: r.canvas.Ops()})
	case EvVoteKick:
		err = r.handleVoteKick(ctx, p, msg.Payload)
	case EvVoteSkip:
		err = r.handleVoteSkip(ctx, p)
	default:
		err = CodeError(ErrBadRequest)
	}

	if err != nil {
		code := Code(err)
		r.sendError(p, code, err.Error())
		metrics.WebsocketEvents.WithLabelValues(string(msg.Event), "rejected").Inc()
		return
	}
	metrics.WebsocketEvents.WithLabelValues(string(msg.Event), "ok").Inc()
}

// --- lobby ---

func (r *Room) handleLobbyChat(p *Player, raw json.RawMessage) error {
	if r.status != StatusWaiting {
		return CodeError(ErrGameNotActive)
	}
	var payload TextPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CodeError(ErrBadRequest)
	}
	text, ok := SanitizeChatText(payload.Text)
	if !ok {
		return CodeError(ErrBadRequest)
	}
	now := r.cfg.Clock.Now()
	if allowed, retry := p.allowChat(now); !allowed {
		r.sendTo(p, EvRateLimited, RateLimitedPayload{Kind: "chat", RetryAfterMs: retry.Milliseconds()})
		metrics.RateLimitExceeded.WithLabelValues("room", "chat").Inc()
		return nil
	}
	msg := r.lobby.addChat(p.Info.UserID, text, now)
	r.broadcast(EvLobbyMessage, msg)
	return nil
}

func (r *Room) handleUpdateSettings(p *Player, raw json.RawMessage) error {
	if r.cfg.IsPrivate && p.Info.UserID != r.hostID {
		return CodeError(ErrNotHost)
	}
	if !r.cfg.IsPrivate {
		return CodeError(ErrNotHost)
	}
	if r.status != StatusWaiting {
		return CodeError(ErrGameInProgress)
	}
	var patch SettingsPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return CodeError(ErrBadRequest)
	}
	updated, err := r.settings.Apply(&patch)
	if err != nil {
		return CodeError(ErrInvalidSettings)
	}
	if updated.MaxPlayers < len(r.players) {
		return CodeError(ErrInvalidSettings)
	}
	r.settings = updated
	r.broadcast(EvSettingsUpdated, r.settings)
	msg := r.lobby.addSystem("Room settings updated", r.cfg.Clock.Now())
	r.broadcast(EvLobbyMessage, msg)
	return nil
}

func (r *Room) handleStartGame(ctx context.Context, p *Player) error {
	if r.status != StatusWaiting {
		return CodeError(ErrGameInProgress)
	}
	if len(r.players) < 2 {
		return CodeError(ErrBadRequest)
	}
	if r.cfg.IsPrivate {
		if p.Info.UserID != r.hostID {
			return CodeError(ErrNotHost)
		}
	} else if !r.allReady() {
		return CodeError(ErrNotHost)
	}
	r.startGame(ctx)
	return nil
}

func (r *Room) handlePlayerReady(ctx context.Context, p *Player, raw json.RawMessage) error {
	if r.status != StatusWaiting {
		return CodeError(ErrGameInProgress)
	}
	var payload PlayerReadyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CodeError(ErrBadRequest)
	}
	if p.Ready == payload.Ready {
		return nil
	}
	p.Ready = payload.Ready
	r.broadcast(EvPlayerReadyChanged, PlayerReadyChangedPayload{
		UserID: p.Info.UserID,
		Ready:  p.Ready,
	})
	verb := "is ready"
	if !p.Ready {
		verb = "is not ready"
	}
	msg := r.lobby.addSystem(p.Info.DisplayName+" "+verb, r.cfg.Clock.Now())
	r.broadcast(EvLobbyMessage, msg)

	// Public rooms start themselves once everyone is ready.
	if !r.cfg.IsPrivate && len(r.players) >= 2 && r.allReady() {
		r.startGame(ctx)
	}
	return nil
}

func (r *Room) allReady() bool {
	for _, p := range r.players {
		if p.Conn == ConnConnected && !p.Ready {
			return false
		}
	}
	return true
}

// --- turn ---

func (r *Room) handleSelectWord(ctx context.Context, p *Player, raw json.RawMessage) error {
	if r.status != StatusWordSelection {
		return CodeError(ErrGameNotActive)
	}
	if !p.IsDrawer {
		return CodeError(ErrNotDrawer)
	}
	var payload SelectWordPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CodeError(ErrBadRequest)
	}
	for _, choice := range r.turn.choices {
		if choice == payload.Word {
			r.startDrawing(ctx, choice)
			return nil
		}
	}
	return CodeError(ErrInvalidWord)
}

func (r *Room) handleDrawOp(p *Player, raw json.RawMessage) error {
	if r.status != StatusDrawing {
		return CodeError(ErrGameNotActive)
	}
	if !p.IsDrawer {
		return CodeError(ErrNotDrawer)
	}
	if !r.allowDraw() {
		metrics.RateLimitExceeded.WithLabelValues("room", "draw").Inc()
		r.sendTo(p, EvRateLimited, RateLimitedPayload{Kind: "draw", RetryAfterMs: 1000})
		return nil
	}
	var payload DrawOpPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CodeError(ErrBadRequest)
	}
	op := payload.Op
	op.UserID = p.Info.UserID
	if err := ValidateDrawOp(op); err != nil {
		return CodeError(ErrBadRequest)
	}
	for _, stored := range r.canvas.Append(op) {
		r.broadcastExcept(p.Info.UserID, EvDrawingStroke, stored)
	}
	return nil
}

// allowDraw enforces the drawer's ops-per-second budget over one-second
// windows on the injected clock.
func (r *Room) allowDraw() bool {
	t := r.turn
	now := r.cfg.Clock.Now()
	if now.Sub(t.drawWindow) >= 1e9 {
		t.drawWindow = now
		t.drawsInWin = 0
	}
	if t.drawsInWin >= drawOpsPerSecond {
		return false
	}
	t.drawsInWin++
	return true
}

func (r *Room) handleCanvasClear(p *Player) error {
	if r.status != StatusDrawing {
		return CodeError(ErrGameNotActive)
	}
	if !p.IsDrawer {
		return CodeError(ErrNotDrawer)
	}
	r.canvas.Clear()
	r.broadcast(EvCanvasCleared, nil)
	return nil
}

func (r *Room) handleCanvasUndo(p *Player) error {
	if r.status != StatusDrawing {
		return CodeError(ErrGameNotActive)
	}
	if !p.IsDrawer {
		return CodeError(ErrNotDrawer)
	}
	if r.canvas.Undo(p.Info.UserID) {
		r.broadcast(EvCanvasState, CanvasStatePayload{Ops: r.canvas.Ops()})
	}
	return nil
}

// --- chat & guessing ---

func (r *Room) handleChatMessage(ctx context.Context, p *Player, raw json.RawMessage) error {
	var payload TextPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CodeError(ErrBadRequest)
	}
	text, ok := SanitizeChatText(payload.Text)
	if !ok {
		return CodeError(ErrBadRequest)
	}

	if r.status == StatusDrawing && p.IsDrawer {
		return CodeError(ErrNotDrawerChat)
	}

	now := r.cfg.Clock.Now()
	if allowed, retry := p.allowChat(now); !allowed {
		r.sendTo(p, EvRateLimited, RateLimitedPayload{Kind: "chat", RetryAfterMs: retry.Milliseconds()})
		metrics.RateLimitExceeded.WithLabelValues("room", "chat").Inc()
		return nil
	}

	if r.status != StatusDrawing {
		r.broadcast(EvChatBroadcast, ChatBroadcastPayload{
			UserID: p.Info.UserID,
			Text:   r.lobby.filter.Apply(text),
			TsMs:   now.UnixMilli(),
		})
		return nil
	}

	return r.evaluateGuess(ctx, p, text, now)
}

func (r *Room) evaluateGuess(ctx context.Context, p *Player, text string, now time.Time) error {
	t := r.turn
	verdict := EvaluateGuess(text, t.word)
	if p.HasGuessed && verdict == VerdictCorrect {
		// Rejected privately so the word never re-enters chat.
		return CodeError(ErrAlreadyGuessed)
	}
	metrics.GuessesTotal.WithLabelValues(string(verdict)).Inc()

	switch verdict {
	case VerdictCorrect:
		elapsed := now.Sub(t.startedAt).Milliseconds()
		points := GuesserPoints(elapsed, t.totalMs)
		p.HasGuessed = true
		p.GuessAtMs = elapsed
		p.GuessOrder = len(t.guessed) + 1
		p.ScoreTurn = points
		p.ScoreGame += points
		p.CorrectGuesses++
		if p.BestGuessMs == 0 || elapsed < p.BestGuessMs {
			p.BestGuessMs = elapsed
		}
		t.guessed = append(t.guessed, p.Info.UserID)

		r.broadcast(EvPlayerGuessed, PlayerGuessedPayload{UserID: p.Info.UserID})
		r.sendTo(p, EvCorrectGuess, CorrectGuessPayload{UserID: p.Info.UserID, Word: t.word})
		r.broadcast(EvScoreUpdate, ScoreUpdatePayload{Scores: r.cumulativeScores()})

		logging.Info(ctx, "Correct guess",
			zap.String("roomId", string(r.cfg.ID)),
			zap.Int("turnId", r.turnID),
			zap.String("userId", string(p.Info.UserID)),
			zap.Int64("elapsedMs", elapsed))

		if r.allNonDrawersGuessed() {
			r.endTurn(ctx, EndAllGuessed)
		}
	case VerdictClose:
		// The sender alone learns they were close; everyone else sees the
		// literal line.
		r.sendTo(p, EvCloseGuess, TextPayload{Text: text})
		r.broadcastExcept(p.Info.UserID, EvChatBroadcast, ChatBroadcastPayload{
			UserID: p.Info.UserID,
			Text:   text,
			TsMs:   now.UnixMilli(),
		})
	default:
		r.broadcast(EvChatBroadcast, ChatBroadcastPayload{
			UserID: p.Info.UserID,
			Text:   r.lobby.filter.Apply(text),
			TsMs:   now.UnixMilli(),
		})
	}
	return nil
}

// --- votes ---

func (r *Room) handleVoteKick(ctx context.Context, p *Player, raw json.RawMessage) error {
	var payload VoteKickPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CodeError(ErrBadRequest)
	}
	target, ok := r.players[payload.UserID]
	if !ok {
		return CodeError(ErrPlayerNotFound)
	}
	if payload.UserID == p.Info.UserID {
		return CodeError(ErrBadRequest)
	}

	votes := r.votesKick[payload.UserID]
	if votes == nil {
		votes = make(map[UserID]struct{})
		r.votesKick[payload.UserID] = votes
	}
	votes[p.Info.UserID] = struct{}{}

	// Strict majority of present players excluding the target.
	eligible := 0
	for id, pl := range r.players {
		if id != payload.UserID && pl.Conn == ConnConnected {
			eligible++
		}
	}
	if len(votes)*2 > eligible {
		logging.Info(ctx, "Vote kick carried",
			zap.String("roomId", string(r.cfg.ID)),
			zap.String("targetId", string(payload.UserID)),
			zap.Int("votes", len(votes)))
		r.removePlayer(ctx, target.Info.UserID, "kicked")
	}
	return nil
}

func (r *Room) handleVoteSkip(ctx context.Context, p *Player) error {
	if r.status != StatusDrawing {
		return CodeError(ErrGameNotActive)
	}
	if p.IsDrawer {
		return CodeError(ErrBadRequest)
	}
	r.votesSkip[p.Info.UserID] = struct{}{}
	r.checkVoteSkip(ctx)
	return nil
}

// checkVoteSkip ends the turn when a strict majority of present non-drawers
// want to skip. Re-checked on departures, since the electorate shrinks.
func (r *Room) checkVoteSkip(ctx context.Context) {
	if r.status != StatusDrawing {
		return
	}
	eligible := 0
	for _, pl := range r.players {
		if !pl.IsDrawer && pl.Conn == ConnConnected {
			eligible++
		}
	}
	votes := 0
	for id := range r.votesSkip {
		if pl, ok := r.players[id]; ok && !pl.IsDrawer {
			votes++
		}
	}
	if eligible > 0 && votes*2 > eligible {
		r.endTurn(ctx, EndSkipped)
	}
}

// dropVotesBy removes a departing player's ballots.
func (r *Room) dropVotesBy(userID UserID) {
	delete(r.votesSkip, userID)
	delete(r.votesKick, userID)
	for _, votes := range r.votesKick {
		delete(votes, userID)
	}
}
