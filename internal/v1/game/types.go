package game

import "time"

// --- Core Domain Types ---

// RoomID identifies a room. Six base36 characters.
type RoomID string

// UserID is the immutable identity of a player, taken from the verified token.
type UserID string

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusWaiting       RoomStatus = "waiting"
	StatusStarting      RoomStatus = "starting"
	StatusWordSelection RoomStatus = "word_selection"
	StatusDrawing       RoomStatus = "drawing"
	StatusTurnEnd       RoomStatus = "turn_end"
	StatusRoundEnd      RoomStatus = "round_end"
	StatusFinished      RoomStatus = "finished"
)

// ConnState tracks a player's connection lifecycle within a room.
type ConnState string

const (
	ConnConnected ConnState = "connected"
	ConnGrace     ConnState = "grace"
)

// TurnEndReason records why a drawing turn ended.
type TurnEndReason string

const (
	EndTimeUp     TurnEndReason = "time_up"
	EndAllGuessed TurnEndReason = "all_guessed"
	EndSkipped    TurnEndReason = "skipped"
	EndDrawerLeft TurnEndReason = "drawer_left"
	EndCancelled  TurnEndReason = "cancelled"
)

// ErrorCode is a typed, client-visible rejection code.
type ErrorCode string

const (
	ErrAuthFailed        ErrorCode = "auth_failed"
	ErrProfileIncomplete ErrorCode = "profile_incomplete"
	ErrAuthExpired       ErrorCode = "auth_expired"
	ErrBadRequest        ErrorCode = "bad_request"
	ErrRateLimited       ErrorCode = "rate_limited"
	ErrRoomNotFound      ErrorCode = "room_not_found"
	ErrRoomFull          ErrorCode = "room_full"
	ErrGameInProgress    ErrorCode = "game_in_progress"
	ErrNotHost           ErrorCode = "not_host"
	ErrNotDrawer         ErrorCode = "not_drawer"
	ErrNotDrawerChat     ErrorCode = "not_drawer_chat"
	ErrInvalidWord       ErrorCode = "invalid_word"
	ErrInvalidSettings   ErrorCode = "invalid_settings"
	ErrPlayerNotFound    ErrorCode = "player_not_found"
	ErrAlreadyGuessed    ErrorCode = "already_guessed"
	ErrGameNotActive     ErrorCode = "game_not_active"
	ErrBackpressure      ErrorCode = "backpressure"
)

// Sender delivers outbound events to one player's connection. Implementations
// must never block the caller: events are queued on a bounded buffer and
// low-priority events are dropped under pressure.
type Sender interface {
	Send(event EventType, payload any)
	Close(reason ErrorCode)
}

// PlayerInfo is the verified profile a connection carries into a room.
type PlayerInfo struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Player is a room member. All fields are owned by the room's consumer
// goroutine and must not be touched from outside it.
type Player struct {
	Info      PlayerInfo
	Sender    Sender
	Conn      ConnState
	Ready     bool
	ScoreGame int
	ScoreTurn int
	// IsDrawer and HasGuessed are per-turn flags, reset at turn start.
	IsDrawer   bool
	HasGuessed bool
	GuessOrder int
	GuessAtMs  int64
	// CorrectGuesses and BestGuessMs accumulate over the whole game and feed
	// the end-of-game awards and the persisted participant record.
	CorrectGuesses int
	BestGuessMs    int64
	JoinedAt       time.Time
	// JoinRound is the round index the player joined during; players who
	// join mid-game only enter the turn order in later rounds.
	JoinRound int
	// GraceUntil is set while Conn == ConnGrace.
	GraceUntil time.Time
	// chatTimes is the rolling window for the chat/guess rate limit,
	// cooldownUntil the penalty window after an excess message.
	chatTimes     []time.Time
	cooldownUntil time.Time
}

// PlayerSnapshot is the wire representation of a player.
type PlayerSnapshot struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Score       int    `json:"score"`
	Ready       bool   `json:"ready"`
	IsDrawer    bool   `json:"isDrawer"`
	HasGuessed  bool   `json:"hasGuessed"`
	Connected   bool   `json:"connected"`
	IsHost      bool   `json:"isHost"`
}

// DrawTool enumerates the drawing tools a stroke may carry.
type DrawTool string

const (
	ToolPen    DrawTool = "pen"
	ToolEraser DrawTool = "eraser"
)

// Point is a drawing coordinate in the normalized [0,1]x[0,1] plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DrawOpKind enumerates canvas operations.
type DrawOpKind string

const (
	OpStroke     DrawOpKind = "stroke"
	OpBucketFill DrawOpKind = "bucket_fill"
	OpClear      DrawOpKind = "clear"
	OpUndo       DrawOpKind = "undo"
)

// DrawOp is one opaque canvas operation. The server validates domains and
// ordering but never interprets the drawing content.
type DrawOp struct {
	Kind   DrawOpKind `json:"kind"`
	Tool   DrawTool   `json:"tool,omitempty"`
	Color  string     `json:"color,omitempty"` // "#RRGGBB"
	Size   int        `json:"size,omitempty"`  // 1-40
	Points []Point    `json:"points,omitempty"`
	UserID UserID     `json:"userId,omitempty"`
}

// LobbyMessageKind distinguishes player chat from server notices.
type LobbyMessageKind string

const (
	LobbyKindChat   LobbyMessageKind = "chat"
	LobbyKindSystem LobbyMessageKind = "system"
)

// SystemSender is the sender id used for server-generated lobby messages.
const SystemSender UserID = "SYSTEM"

// LobbyMessage is one line of pre-game chat.
type LobbyMessage struct {
	ID     string           `json:"id"`
	Sender UserID           `json:"sender"`
	Kind   LobbyMessageKind `json:"kind"`
	Text   string           `json:"text"`
	TsMs   int64            `json:"tsMs"`
}

// Hint is one revealed letter position.
type Hint struct {
	Index  int    `json:"index"`
	Letter string `json:"letter"`
}
