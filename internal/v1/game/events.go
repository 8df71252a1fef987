// Package game implements the room state machine for the drawing and
// guessing game: lobby, turn lifecycle, guess evaluation, scoring, hints,
// and the in-memory canvas log. Each room is a single-consumer executor;
// connections and the registry communicate with it only through its
// bounded input channel.
package game

import (
	"encoding/json"
	"fmt"
)

// EventType tags every frame on the wire, client to server and back.
type EventType string

// Client -> Server events.
const (
	EvAuthenticate      EventType = "authenticate"
	EvJoinPublicGame    EventType = "join_public_game"
	EvCreatePrivateRoom EventType = "create_private_room"
	EvJoinPrivateRoom   EventType = "join_private_room"
	EvLeaveRoom         EventType = "leave_room"
	EvLobbyChat         EventType = "lobby_chat"
	EvUpdateSettings    EventType = "update_room_settings"
	EvStartGame         EventType = "start_game"
	EvPlayerReady       EventType = "player_ready"
	EvSelectWord        EventType = "select_word"
	EvDrawOp            EventType = "draw_op"
	EvCanvasClear       EventType = "canvas_clear"
	EvCanvasUndo        EventType = "canvas_undo"
	EvChatMessage       EventType = "chat_message"
	EvRequestCanvasSync EventType = "request_canvas_sync"
	EvVoteKick          EventType = "vote_kick"
	EvVoteSkip          EventType = "vote_skip"
	EvPing              EventType = "ping"
	EvMobileEvent       EventType = "mobile_event"
	EvConnectionQuality EventType = "connection_quality"
)

// Server -> Client events.
const (
	EvAuthenticated      EventType = "authenticated"
	EvRoomJoined         EventType = "room_joined"
	EvRoomCreated        EventType = "room_created"
	EvPlayerJoined       EventType = "player_joined"
	EvPlayerLeft         EventType = "player_left"
	EvSettingsUpdated    EventType = "room_settings_updated"
	EvLobbyMessage       EventType = "lobby_message"
	EvPlayerReadyChanged EventType = "player_ready_changed"
	EvGameStarting       EventType = "game_starting"
	EvTurnStarting       EventType = "turn_starting"
	EvWordSelection      EventType = "word_selection"
	EvDrawingStroke      EventType = "drawing_stroke"
	EvCanvasCleared      EventType = "canvas_cleared"
	EvCanvasState        EventType = "canvas_state"
	EvChatBroadcast      EventType = "chat_message"
	EvPlayerGuessed      EventType = "player_guessed"
	EvCorrectGuess       EventType = "correct_guess"
	EvCloseGuess         EventType = "close_guess"
	EvTimerUpdate        EventType = "timer_update"
	EvHintRevealed       EventType = "hint_revealed"
	EvScoreUpdate        EventType = "score_update"
	EvTurnEnded          EventType = "turn_ended"
	EvRoundEnded         EventType = "round_ended"
	EvGameEnded          EventType = "game_ended"
	EvError              EventType = "error"
	EvRateLimited        EventType = "rate_limited"
	EvPong               EventType = "pong"
	EvMobileHints        EventType = "mobile_hints"
)

// MaxFrameBytes bounds the size of one inbound frame before decoding.
const MaxFrameBytes = 64 * 1024

// ClientMessage is the decoded envelope of one inbound frame.
type ClientMessage struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the envelope of one outbound frame.
type ServerMessage struct {
	Event   EventType `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

// DecodeClientMessage parses and size-checks one inbound frame.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	if len(data) > MaxFrameBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes", MaxFrameBytes)
	}
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("frame missing event tag")
	}
	return &msg, nil
}

// --- Client payloads ---

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type CreatePrivateRoomPayload struct {
	Settings *SettingsPatch `json:"settings,omitempty"`
}

type JoinPrivateRoomPayload struct {
	Code string `json:"code"`
}

type TextPayload struct {
	Text string `json:"text"`
}

type PlayerReadyPayload struct {
	Ready bool `json:"ready"`
}

type SelectWordPayload struct {
	Word string `json:"word"`
}

type DrawOpPayload struct {
	Op DrawOp `json:"op"`
}

type VoteKickPayload struct {
	UserID UserID `json:"userId"`
}

type PingPayload struct {
	T int64 `json:"t"`
}

type MobileEventPayload struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ConnectionQualityPayload struct {
	// Quality is a client-estimated score in [0,1]; advisory only.
	Quality float64 `json:"quality"`
}

// --- Server payloads ---

type AuthenticatedPayload struct {
	OK     bool      `json:"ok"`
	Err    ErrorCode `json:"err,omitempty"`
	UserID UserID    `json:"userId,omitempty"`
}

type RoomSnapshot struct {
	RoomID     RoomID           `json:"roomId"`
	Status     RoomStatus       `json:"status"`
	Settings   Settings         `json:"settings"`
	Players    []PlayerSnapshot `json:"players"`
	HostID     UserID           `json:"hostId,omitempty"`
	RoundIndex int              `json:"roundIndex"`
	Turn       *TurnSnapshot    `json:"turn,omitempty"`
	Lobby      []LobbyMessage   `json:"lobby,omitempty"`
}

type RoomCreatedPayload struct {
	Room       RoomSnapshot `json:"room"`
	InviteCode string       `json:"inviteCode"`
}

type PlayerLeftPayload struct {
	UserID UserID `json:"userId"`
	Reason string `json:"reason"`
}

type PlayerReadyChangedPayload struct {
	UserID UserID `json:"userId"`
	Ready  bool   `json:"ready"`
}

// TurnSnapshot is what every player may know about the current turn. The
// secret word appears only in the drawer's copy.
type TurnSnapshot struct {
	TurnID          int    `json:"turnId"`
	DrawerID        UserID `json:"drawerId"`
	RoundIndex      int    `json:"roundIndex"`
	WordPattern     string `json:"wordPattern"`
	Word            string `json:"word,omitempty"`
	TimeTotalMs     int64  `json:"timeTotalMs"`
	TimeRemainingMs int64  `json:"timeRemainingMs"`
}

type WordSelectionPayload struct {
	Choices    []string `json:"choices"`
	DeadlineMs int64    `json:"deadlineMs"`
}

type CanvasStatePayload struct {
	Ops []DrawOp `json:"ops"`
}

type ChatBroadcastPayload struct {
	UserID UserID `json:"userId"`
	Text   string `json:"text"`
	TsMs   int64  `json:"tsMs"`
}

type PlayerGuessedPayload struct {
	UserID UserID `json:"userId"`
}

type CorrectGuessPayload struct {
	UserID UserID `json:"userId"`
	Word   string `json:"word"`
}

type TimerUpdatePayload struct {
	RemainingMs int64 `json:"remainingMs"`
}

type ScoreUpdatePayload struct {
	Scores map[UserID]int `json:"scores"`
}

// GuessResult is one correct guesser's line in a TurnResult, in guess order.
type GuessResult struct {
	UserID UserID `json:"userId"`
	AtMs   int64  `json:"atMs"`
	Points int    `json:"points"`
}

type TurnResult struct {
	TurnID       int           `json:"turnId"`
	DrawerID     UserID        `json:"drawerId"`
	Word         string        `json:"word"`
	Guesses      []GuessResult `json:"guesses"`
	DrawerPoints int           `json:"drawerPoints"`
	ElapsedMs    int64         `json:"elapsedMs"`
	Reason       TurnEndReason `json:"reason"`
}

type RoundEndedPayload struct {
	RoundIndex int            `json:"roundIndex"`
	Scores     map[UserID]int `json:"scores"`
}

// RankEntry is one leaderboard line, standard competition ranking.
type RankEntry struct {
	UserID UserID `json:"userId"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}

// FastestGuess is the fastest correct guess of the whole game.
type FastestGuess struct {
	UserID    UserID `json:"userId"`
	ElapsedMs int64  `json:"elapsedMs"`
}

type GameResult struct {
	Winners      []UserID       `json:"winners"`
	Scores       map[UserID]int `json:"scores"`
	Rankings     []RankEntry    `json:"rankings"`
	FastestGuess *FastestGuess  `json:"fastestGuess,omitempty"`
}

type ErrorPayload struct {
	Code ErrorCode `json:"code"`
	Msg  string    `json:"msg,omitempty"`
}

type RateLimitedPayload struct {
	Kind         string `json:"kind"`
	RetryAfterMs int64  `json:"retryAfterMs"`
}

type PongPayload struct {
	T int64 `json:"t"`
}

// MobileHintsPayload retunes a client's transport behavior. Advisory only.
type MobileHintsPayload struct {
	HeartbeatIntervalMs int64 `json:"heartbeatIntervalMs"`
	StrokeBatchSize     int   `json:"strokeBatchSize"`
	CompressionLevel    int   `json:"compressionLevel"`
}
