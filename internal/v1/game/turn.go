package game

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/store"
)

// startGame moves the room from waiting to starting. Caller has already
// checked permissions.
func (r *Room) startGame(ctx context.Context) {
	r.setStatus(StatusStarting)
	r.phaseDeadline = r.cfg.Clock.Now().Add(startingPause)
	r.broadcast(EvGameStarting, r.snapshotRoomPublic())
	logging.Info(ctx, "Game starting",
		zap.String("roomId", string(r.cfg.ID)),
		zap.Int("players", len(r.players)))
}

// beginGame seeds the turn order and opens the first word selection.
func (r *Room) beginGame(ctx context.Context) {
	now := r.cfg.Clock.Now()
	r.session = sessionAccum{startedAt: now}
	r.roundIndex = 0
	r.turnIdx = 0
	r.turnID = 0

	r.turnOrder = make([]UserID, 0, len(r.players))
	for _, id := range r.order {
		r.turnOrder = append(r.turnOrder, id)
	}
	r.rng.Shuffle(len(r.turnOrder), func(i, j int) {
		r.turnOrder[i], r.turnOrder[j] = r.turnOrder[j], r.turnOrder[i]
	})

	for _, p := range r.players {
		p.ScoreGame = 0
		p.ScoreTurn = 0
		p.CorrectGuesses = 0
		p.BestGuessMs = 0
		p.Ready = false
		p.JoinRound = -1
	}

	r.startWordSelection(ctx)
}

// nextDrawer advances turnIdx to the next eligible drawer in this round.
// Returns false when the round is exhausted.
func (r *Room) nextDrawer() (UserID, bool) {
	for ; r.turnIdx < len(r.turnOrder); r.turnIdx++ {
		id := r.turnOrder[r.turnIdx]
		p, ok := r.players[id]
		if !ok {
			continue
		}
		// Mid-game joiners sit out the round they joined during.
		if p.JoinRound >= 0 && p.JoinRound >= r.roundIndex {
			continue
		}
		return id, true
	}
	return "", false
}

func (r *Room) startWordSelection(ctx context.Context) {
	drawerID, ok := r.nextDrawer()
	if !ok {
		r.endRound(ctx)
		return
	}

	r.turnID++
	r.canvas.Clear()
	r.votesSkip = make(map[UserID]struct{})
	r.votesKick = make(map[UserID]map[UserID]struct{})
	for _, p := range r.players {
		p.IsDrawer = false
		p.HasGuessed = false
		p.ScoreTurn = 0
		p.GuessOrder = 0
		p.GuessAtMs = 0
	}
	drawer := r.players[drawerID]
	drawer.IsDrawer = true

	r.turn = &turnState{
		drawerID: drawerID,
		choices:  r.wordChoices(),
		totalMs:  int64(r.settings.DrawTimeSeconds) * 1000,
	}

	r.setStatus(StatusWordSelection)
	r.phaseDeadline = r.cfg.Clock.Now().Add(wordSelectWindow)

	r.broadcast(EvTurnStarting, TurnSnapshot{
		TurnID:     r.turnID,
		DrawerID:   drawerID,
		RoundIndex: r.roundIndex,
	})
	r.sendTo(drawer, EvWordSelection, WordSelectionPayload{
		Choices:    r.turn.choices,
		DeadlineMs: r.phaseDeadline.UnixMilli(),
	})
}

// wordChoices resolves three candidates according to word_mode.
func (r *Room) wordChoices() []string {
	const n = 3
	custom := r.settings.CustomWords
	switch r.settings.WordMode {
	case ModeCombination:
		if len(custom) > 0 {
			pool := append(append([]string(nil), custom...),
				r.cfg.Words.Pick(string(r.settings.Language), n)...)
			return r.cfg.Words.PickFrom(pool, n)
		}
	default:
		// normal and hidden: custom list replaces the language list.
		if len(custom) > 0 {
			return r.cfg.Words.PickFrom(custom, n)
		}
	}
	return r.cfg.Words.Pick(string(r.settings.Language), n)
}

// startDrawing locks in the word and opens the drawing phase.
func (r *Room) startDrawing(ctx context.Context, word string) {
	now := r.cfg.Clock.Now()
	t := r.turn
	t.word = word
	t.choices = nil
	t.startedAt = now
	r.phaseDeadline = now.Add(time.Duration(t.totalMs) * time.Millisecond)

	hints := r.settings.Hints
	if r.settings.WordMode == ModeHidden {
		hints = 0
	}
	t.hints = NewHintScheduler(word, hints, t.totalMs, int64(r.turnID))

	r.setStatus(StatusDrawing)

	snap := TurnSnapshot{
		TurnID:          r.turnID,
		DrawerID:        t.drawerID,
		RoundIndex:      r.roundIndex,
		WordPattern:     r.patternFor(nil),
		TimeTotalMs:     t.totalMs,
		TimeRemainingMs: t.totalMs,
	}
	r.broadcastExcept(t.drawerID, EvTurnStarting, snap)

	drawerSnap := snap
	drawerSnap.Word = word
	if d, ok := r.players[t.drawerID]; ok {
		r.sendTo(d, EvTurnStarting, drawerSnap)
	}

	logging.Info(ctx, "Drawing phase started",
		zap.String("roomId", string(r.cfg.ID)),
		zap.Int("turnId", r.turnID),
		zap.String("drawerId", string(t.drawerID)))
}

// patternFor renders the visible word pattern. Hidden mode shows nothing.
func (r *Room) patternFor(_ *Player) string {
	if r.settings.WordMode == ModeHidden {
		return ""
	}
	if r.turn != nil && r.turn.hints != nil {
		return r.turn.hints.Pattern()
	}
	return MaskWord(r.turn.word)
}

func (r *Room) fireDueHints(remainingMs int64) {
	t := r.turn
	if t == nil || t.hints == nil {
		return
	}
	for t.hints.Due(remainingMs) {
		hints := t.hints.Reveal()
		if len(hints) == 0 {
			return
		}
		t.revealed = append(t.revealed, hints...)
		for _, h := range hints {
			r.broadcastExcept(t.drawerID, EvHintRevealed, h)
		}
	}
}

// allNonDrawersGuessed reports whether every connected non-drawer has
// guessed correctly this turn. Players riding out a disconnect grace are
// not counted; they cannot guess.
func (r *Room) allNonDrawersGuessed() bool {
	if r.turn == nil {
		return false
	}
	eligible := 0
	for _, p := range r.players {
		if p.IsDrawer || p.Conn != ConnConnected {
			continue
		}
		eligible++
		if !p.HasGuessed {
			return false
		}
	}
	return eligible > 0
}

// endTurn freezes the clock, settles scores, publishes the TurnResult and
// enters the turn_end pause.
func (r *Room) endTurn(ctx context.Context, reason TurnEndReason) {
	t := r.turn
	if t == nil {
		return
	}
	now := r.cfg.Clock.Now()
	elapsed := int64(0)
	if !t.startedAt.IsZero() {
		elapsed = now.Sub(t.startedAt).Milliseconds()
		if elapsed > t.totalMs {
			elapsed = t.totalMs
		}
	}

	var guesses []GuessResult
	var guesserPts []int
	for _, id := range t.guessed {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		guesses = append(guesses, GuessResult{UserID: id, AtMs: p.GuessAtMs, Points: p.ScoreTurn})
		guesserPts = append(guesserPts, p.ScoreTurn)
	}

	drawerPts := DrawerPoints(guesserPts, len(r.players))
	if drawer, ok := r.players[t.drawerID]; ok {
		drawer.ScoreTurn = drawerPts
		drawer.ScoreGame += drawerPts
		drawer.IsDrawer = false
	}

	turnScores := make(map[UserID]int, len(guesses)+1)
	for _, g := range guesses {
		turnScores[g.UserID] = g.Points
	}
	turnScores[t.drawerID] = drawerPts
	scoresJSON, err := json.Marshal(turnScores)
	if err != nil {
		scoresJSON = []byte("{}")
	}

	r.session.rounds = append(r.session.rounds, store.RoundRecord{
		RoundNumber:    r.roundIndex,
		DrawerUserID:   string(t.drawerID),
		Word:           t.word,
		CorrectGuesses: len(guesses),
		ScoresJSON:     scoresJSON,
		StartedAt:      t.startedAt,
		EndedAt:        now,
	})

	r.canvas.Clear()
	t.hints = nil

	r.setStatus(StatusTurnEnd)
	r.phaseDeadline = now.Add(turnEndPause)
	// Consume the drawer's slot. When the drawer already left, their slot
	// collapsed out of the order and turnIdx points at the next player.
	if i := r.turnOrderIndex(t.drawerID); i >= 0 {
		r.turnIdx = i + 1
	}

	r.broadcast(EvTurnEnded, TurnResult{
		TurnID:       r.turnID,
		DrawerID:     t.drawerID,
		Word:         t.word,
		Guesses:      guesses,
		DrawerPoints: drawerPts,
		ElapsedMs:    elapsed,
		Reason:       reason,
	})
	r.broadcast(EvScoreUpdate, ScoreUpdatePayload{Scores: r.cumulativeScores()})

	logging.Info(ctx, "Turn ended",
		zap.String("roomId", string(r.cfg.ID)),
		zap.Int("turnId", r.turnID),
		zap.String("reason", string(reason)),
		zap.Int("correctGuesses", len(guesses)))
}

func (r *Room) advanceAfterTurn(ctx context.Context) {
	if _, ok := r.nextDrawer(); ok {
		r.startWordSelection(ctx)
		return
	}
	r.endRound(ctx)
}

func (r *Room) endRound(ctx context.Context) {
	r.turn = nil
	r.setStatus(StatusRoundEnd)
	r.phaseDeadline = r.cfg.Clock.Now().Add(roundEndPause)
	r.broadcast(EvRoundEnded, RoundEndedPayload{
		RoundIndex: r.roundIndex,
		Scores:     r.cumulativeScores(),
	})
	logging.Info(ctx, "Round ended",
		zap.String("roomId", string(r.cfg.ID)),
		zap.Int("roundIndex", r.roundIndex))
}

func (r *Room) advanceAfterRound(ctx context.Context) {
	r.roundIndex++
	if r.roundIndex < r.settings.Rounds {
		r.turnIdx = 0
		r.startWordSelection(ctx)
		return
	}
	r.finishGame(ctx)
}

// finishGame publishes the GameResult, persists the session best-effort and
// enters the podium pause.
func (r *Room) finishGame(ctx context.Context) {
	scores := r.cumulativeScores()
	r.turn = nil
	r.canvas.Clear()
	for _, p := range r.players {
		p.IsDrawer = false
	}
	r.setStatus(StatusFinished)
	r.phaseDeadline = r.cfg.Clock.Now().Add(finishedPause)

	result := GameResult{
		Winners: Winners(scores),
		Scores:  scores,
	}
	for _, pr := range rankPlayers(scores) {
		result.Rankings = append(result.Rankings, RankEntry{UserID: pr.id, Score: pr.score, Rank: pr.rank})
	}
	for id, p := range r.players {
		if p.BestGuessMs == 0 {
			continue
		}
		if result.FastestGuess == nil || p.BestGuessMs < result.FastestGuess.ElapsedMs {
			result.FastestGuess = &FastestGuess{UserID: id, ElapsedMs: p.BestGuessMs}
		}
	}
	r.broadcast(EvGameEnded, result)
	metrics.GamesCompleted.Inc()

	r.persistSession(ctx)
	logging.Info(ctx, "Game finished",
		zap.String("roomId", string(r.cfg.ID)),
		zap.Int("rounds", len(r.session.rounds)))
}

// persistSession hands the session record to the store on a worker
// goroutine; the consumer never awaits the write.
func (r *Room) persistSession(ctx context.Context) {
	if len(r.session.rounds) == 0 {
		return
	}
	now := r.cfg.Clock.Now()
	settingsJSON, err := json.Marshal(r.settings)
	if err != nil {
		settingsJSON = []byte("{}")
	}

	mode := "public"
	if r.cfg.IsPrivate {
		mode = "private"
	}
	rec := &store.SessionRecord{
		SessionID: r.sessionID(),
		RoomID:    string(r.cfg.ID),
		HostID:    string(r.hostID),
		Mode:      mode,
		Settings:  settingsJSON,
		StartedAt: r.session.startedAt,
		EndedAt:   now,
		Rounds:    append([]store.RoundRecord(nil), r.session.rounds...),
	}

	ranked := rankPlayers(r.cumulativeScores())
	for _, pr := range ranked {
		p, ok := r.players[pr.id]
		if !ok {
			continue
		}
		rec.Participants = append(rec.Participants, store.ParticipantRecord{
			UserID:         string(pr.id),
			DisplayName:    p.Info.DisplayName,
			FinalScore:     pr.score,
			FinalRank:      pr.rank,
			CorrectGuesses: p.CorrectGuesses,
			BestGuessMs:    p.BestGuessMs,
			JoinedAt:       p.JoinedAt,
		})
	}

	st := r.cfg.Store
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := st.SaveSession(saveCtx, rec); err != nil {
			logging.Error(ctx, "Session persistence failed",
				zap.String("sessionId", rec.SessionID), zap.Error(err))
		}
	}()
}

type rankedPlayer struct {
	id    UserID
	score int
	rank  int
}

// rankPlayers orders scores descending with standard competition ranking.
func rankPlayers(scores map[UserID]int) []rankedPlayer {
	out := make([]rankedPlayer, 0, len(scores))
	for id, s := range scores {
		out = append(out, rankedPlayer{id: id, score: s})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].score > out[j-1].score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	for i := range out {
		if i > 0 && out[i].score == out[i-1].score {
			out[i].rank = out[i-1].rank
		} else {
			out[i].rank = i + 1
		}
	}
	return out
}

// resetToWaiting returns the room to the lobby after a finished game.
func (r *Room) resetToWaiting() {
	r.setStatus(StatusWaiting)
	r.turn = nil
	r.turnOrder = nil
	r.turnIdx = 0
	r.roundIndex = 0
	r.canvas.Clear()
	r.lobby.clear()
	for _, p := range r.players {
		p.Ready = false
		p.IsDrawer = false
		p.HasGuessed = false
		p.ScoreTurn = 0
	}
	r.broadcast(EvRoomJoined, r.snapshotRoomPublic())
}

func (r *Room) cumulativeScores() map[UserID]int {
	scores := make(map[UserID]int, len(r.players))
	for id, p := range r.players {
		scores[id] = p.ScoreGame
	}
	return scores
}
