// Package transport owns the websocket edge: handshake, authentication,
// per-connection outbound queues with priority drop, liveness, and routing
// of inbound events to the registry and rooms.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
)

const (
	outboundQueueSize = 256
	writeWait         = 10 * time.Second
	// backpressureLimit is how long the outbound queue may stay full before
	// the connection is closed.
	backpressureLimit = 10 * time.Second
	// priorityEnqueueWait bounds how long a control event may wait for
	// queue space; control events are never silently dropped.
	priorityEnqueueWait = 50 * time.Millisecond
)

// wsConnection abstracts the gorilla connection so tests can fake it.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
}

// Client is one player's connection. It implements game.Sender: rooms push
// outbound events here and never block on a slow consumer.
type Client struct {
	conn wsConnection
	hub  *Hub
	info game.PlayerInfo

	send         chan []byte
	prioritySend chan []byte
	done         chan struct{}
	closeOnce    sync.Once

	mu        sync.Mutex
	heartbeat time.Duration
	slowSince time.Time
}

func newClient(hub *Hub, conn wsConnection, info game.PlayerInfo) *Client {
	return &Client{
		conn:         conn,
		hub:          hub,
		info:         info,
		send:         make(chan []byte, outboundQueueSize),
		prioritySend: make(chan []byte, outboundQueueSize),
		done:         make(chan struct{}),
		heartbeat:    hub.heartbeatInterval,
	}
}

// lowPriority events are dropped first under backpressure.
func lowPriority(event game.EventType) bool {
	switch event {
	case game.EvDrawingStroke, game.EvTimerUpdate:
		return true
	}
	return false
}

// Send queues one outbound event. Low-priority events are dropped when the
// queue is full; control events wait briefly. A queue that stays full past
// backpressureLimit closes the connection.
func (c *Client) Send(event game.EventType, payload any) {
	data, err := json.Marshal(game.ServerMessage{Event: event, Payload: payload})
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal outbound event",
			zap.String("event", string(event)), zap.Error(err))
		return
	}

	if lowPriority(event) {
		select {
		case c.send <- data:
			c.markHealthy()
		default:
			metrics.DroppedOutboundEvents.Inc()
			c.markSlow()
		}
		return
	}

	select {
	case c.prioritySend <- data:
		c.markHealthy()
	case <-c.done:
	case <-time.After(priorityEnqueueWait):
		metrics.DroppedOutboundEvents.Inc()
		c.markSlow()
	}
}

func (c *Client) markHealthy() {
	c.mu.Lock()
	c.slowSince = time.Time{}
	c.mu.Unlock()
}

func (c *Client) markSlow() {
	c.mu.Lock()
	if c.slowSince.IsZero() {
		c.slowSince = time.Now()
		c.mu.Unlock()
		return
	}
	sustained := time.Since(c.slowSince) > backpressureLimit
	c.mu.Unlock()
	if sustained {
		logging.Warn(context.Background(), "Closing connection under sustained backpressure",
			zap.String("userId", string(c.info.UserID)))
		c.Close(game.ErrBackpressure)
	}
}

// Close shuts the connection down, optionally with a typed close reason.
// Safe to call from any goroutine, idempotent.
func (c *Client) Close(reason game.ErrorCode) {
	c.closeOnce.Do(func() {
		close(c.done)
		if reason != "" {
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(reason))
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, msg)
		}
		c.conn.Close()
	})
}

// writePump serializes all writes to the connection, draining the priority
// queue first.
func (c *Client) writePump() {
	defer c.Close("")
	for {
		select {
		case data := <-c.prioritySend:
			if !c.write(data) {
				return
			}
		case <-c.done:
			return
		default:
		}

		select {
		case data := <-c.prioritySend:
			if !c.write(data) {
				return
			}
		case data := <-c.send:
			if !c.write(data) {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) write(data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

// readPump consumes inbound frames until the connection dies, then notifies
// the player's room so disconnect grace can begin.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if room := c.hub.registry.Lookup(c.info.UserID); room != nil {
			room.NotifyDisconnect(c.info.UserID)
		}
		c.Close("")
		metrics.DecConnection()
	}()

	c.conn.SetReadLimit(game.MaxFrameBytes)
	for {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := game.DecodeClientMessage(data)
		if err != nil {
			c.Send(game.EvError, game.ErrorPayload{Code: game.ErrBadRequest, Msg: err.Error()})
			metrics.WebsocketEvents.WithLabelValues("malformed", "rejected").Inc()
			continue
		}
		if fatal := c.handleEvent(ctx, msg); fatal {
			return
		}
	}
}

// readTimeout is three missed heartbeats.
func (c *Client) readTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 3 * c.heartbeat
}

// handleEvent routes one inbound event. Connection-scoped events are served
// here; room-scoped events are enqueued on the player's room. Returns true
// when the connection must terminate.
func (c *Client) handleEvent(ctx context.Context, msg *game.ClientMessage) bool {
	switch msg.Event {
	case game.EvPing:
		var p game.PingPayload
		json.Unmarshal(msg.Payload, &p)
		c.Send(game.EvPong, game.PongPayload{T: p.T})
		return false

	case game.EvAuthenticate:
		return c.handleReauthenticate(ctx, msg.Payload)

	case game.EvMobileEvent, game.EvConnectionQuality:
		c.handleTuning(msg)
		return false

	case game.EvJoinPublicGame:
		if _, err := c.hub.registry.JoinPublic(c.info, c); err != nil {
			c.Send(game.EvError, game.ErrorPayload{Code: game.Code(err), Msg: err.Error()})
		}
		return false

	case game.EvCreatePrivateRoom:
		var p game.CreatePrivateRoomPayload
		if msg.Payload != nil {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				c.Send(game.EvError, game.ErrorPayload{Code: game.ErrBadRequest})
				return false
			}
		}
		if _, err := c.hub.registry.CreatePrivate(c.info, c, p.Settings); err != nil {
			c.Send(game.EvError, game.ErrorPayload{Code: game.Code(err), Msg: err.Error()})
		}
		return false

	case game.EvJoinPrivateRoom:
		var p game.JoinPrivateRoomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Code == "" {
			c.Send(game.EvError, game.ErrorPayload{Code: game.ErrBadRequest})
			return false
		}
		if _, err := c.hub.registry.JoinPrivate(c.info, c, p.Code); err != nil {
			c.Send(game.EvError, game.ErrorPayload{Code: game.Code(err), Msg: err.Error()})
		}
		return false

	case game.EvLeaveRoom:
		c.hub.registry.Leave(c.info.UserID)
		return false

	default:
		room := c.hub.registry.Lookup(c.info.UserID)
		if room == nil {
			c.Send(game.EvError, game.ErrorPayload{Code: game.ErrRoomNotFound})
			return false
		}
		room.Enqueue(c.info.UserID, msg)
		return false
	}
}

// handleReauthenticate re-verifies a rotated token. A failure is fatal:
// the connection closes with auth_expired.
func (c *Client) handleReauthenticate(ctx context.Context, raw json.RawMessage) bool {
	var p game.AuthenticatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Token == "" {
		c.Send(game.EvError, game.ErrorPayload{Code: game.ErrBadRequest})
		return false
	}
	identity, err := c.hub.validator.ValidateToken(p.Token)
	if err != nil || game.UserID(identity.UserID) != c.info.UserID {
		logging.Warn(ctx, "Re-authentication failed, closing connection",
			zap.String("userId", string(c.info.UserID)))
		c.Send(game.EvAuthenticated, game.AuthenticatedPayload{OK: false, Err: game.ErrAuthExpired})
		c.Close(game.ErrAuthExpired)
		return true
	}
	c.Send(game.EvAuthenticated, game.AuthenticatedPayload{OK: true, UserID: c.info.UserID})
	return false
}

// handleTuning retunes the connection from advisory client hints. Never
// touches game state.
func (c *Client) handleTuning(msg *game.ClientMessage) {
	hints := game.MobileHintsPayload{
		HeartbeatIntervalMs: c.hub.heartbeatInterval.Milliseconds(),
		StrokeBatchSize:     game.MaxStrokePoints,
		CompressionLevel:    0,
	}

	if msg.Event == game.EvConnectionQuality {
		var p game.ConnectionQualityPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		// Poor links get a slower heartbeat, smaller batches and harder
		// compression.
		switch {
		case p.Quality < 0.3:
			hints.HeartbeatIntervalMs *= 2
			hints.StrokeBatchSize = 16
			hints.CompressionLevel = 2
		case p.Quality < 0.7:
			hints.StrokeBatchSize = 32
			hints.CompressionLevel = 1
		}
	}

	c.mu.Lock()
	c.heartbeat = time.Duration(hints.HeartbeatIntervalMs) * time.Millisecond
	c.mu.Unlock()
	c.Send(game.EvMobileHints, hints)
}
