package transport

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetReadLimit(int64)               {}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func decodeFrame(t *testing.T, data []byte) game.ServerMessage {
	t.Helper()
	var msg game.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func smallQueueClient(conn wsConnection) *Client {
	return &Client{
		conn:         conn,
		send:         make(chan []byte, 1),
		prioritySend: make(chan []byte, 1),
		done:         make(chan struct{}),
		heartbeat:    30 * time.Second,
	}
}

func TestLowPriorityClassification(t *testing.T) {
	assert.True(t, lowPriority(game.EvDrawingStroke))
	assert.True(t, lowPriority(game.EvTimerUpdate))
	assert.False(t, lowPriority(game.EvTurnEnded))
	assert.False(t, lowPriority(game.EvCorrectGuess))
	assert.False(t, lowPriority(game.EvError))
}

func TestSendRoutesByPriority(t *testing.T) {
	c := smallQueueClient(&fakeConn{})

	c.Send(game.EvTimerUpdate, game.TimerUpdatePayload{RemainingMs: 5000})
	c.Send(game.EvCorrectGuess, game.CorrectGuessPayload{UserID: "u1", Word: "apple"})

	low := decodeFrame(t, <-c.send)
	assert.Equal(t, game.EvTimerUpdate, low.Event)
	high := decodeFrame(t, <-c.prioritySend)
	assert.Equal(t, game.EvCorrectGuess, high.Event)
}

func TestSendDropsLowPriorityWhenFull(t *testing.T) {
	c := smallQueueClient(&fakeConn{})

	c.Send(game.EvDrawingStroke, nil)
	c.Send(game.EvDrawingStroke, nil)

	// Only the first stroke fits; the second was dropped, not queued.
	assert.Len(t, c.send, 1)
	assert.False(t, c.isClosedLocked())
}

func TestSendDropsPriorityAfterBriefWait(t *testing.T) {
	c := smallQueueClient(&fakeConn{})

	c.Send(game.EvError, nil)
	start := time.Now()
	c.Send(game.EvError, nil)

	assert.GreaterOrEqual(t, time.Since(start), priorityEnqueueWait)
	assert.Len(t, c.prioritySend, 1)
}

// isClosedLocked reports whether done has been closed.
func (c *Client) isClosedLocked() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func TestSustainedBackpressureClosesConnection(t *testing.T) {
	conn := &fakeConn{}
	c := smallQueueClient(conn)

	// The queue has been full past the tolerance window.
	c.mu.Lock()
	c.slowSince = time.Now().Add(-backpressureLimit - time.Second)
	c.mu.Unlock()
	c.Send(game.EvError, nil) // fills the queue
	c.Send(game.EvError, nil) // overflows and trips the limit

	assert.True(t, c.isClosedLocked())
	assert.True(t, conn.isClosed())
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	c := smallQueueClient(conn)

	c.Close(game.ErrAuthExpired)
	c.Close(game.ErrBackpressure)

	assert.True(t, conn.isClosed())
	conn.mu.Lock()
	defer conn.mu.Unlock()
	// One close frame, from the first call only.
	assert.Len(t, conn.writes, 1)
}

func TestWritePumpDrainsPriorityFirst(t *testing.T) {
	conn := &fakeConn{}
	c := smallQueueClient(conn)

	c.send <- []byte(`{"event":"timer_update"}`)
	c.prioritySend <- []byte(`{"event":"turn_ended"}`)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	assert.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.writes) == 2
	}, time.Second, 5*time.Millisecond)
	c.Close("")
	wg.Wait()

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Equal(t, game.EvTurnEnded, decodeFrame(t, conn.writes[0]).Event)
	assert.Equal(t, game.EvTimerUpdate, decodeFrame(t, conn.writes[1]).Event)
}

func TestPingAnswersPongInline(t *testing.T) {
	hub := &Hub{heartbeatInterval: 30 * time.Second}
	c := newClient(hub, &fakeConn{}, game.PlayerInfo{UserID: "u1"})

	fatal := c.handleEvent(context.Background(), &game.ClientMessage{
		Event:   game.EvPing,
		Payload: json.RawMessage(`{"t":42}`),
	})
	require.False(t, fatal)

	msg := decodeFrame(t, <-c.prioritySend)
	assert.Equal(t, game.EvPong, msg.Event)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, float64(42), payload["t"])
}

func TestConnectionQualityRetunesHeartbeat(t *testing.T) {
	hub := &Hub{heartbeatInterval: 30 * time.Second}
	c := newClient(hub, &fakeConn{}, game.PlayerInfo{UserID: "u1"})

	c.handleTuning(&game.ClientMessage{
		Event:   game.EvConnectionQuality,
		Payload: json.RawMessage(`{"quality":0.2}`),
	})

	msg := decodeFrame(t, <-c.prioritySend)
	require.Equal(t, game.EvMobileHints, msg.Event)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, float64(60_000), payload["heartbeatIntervalMs"])
	assert.Equal(t, float64(16), payload["strokeBatchSize"])
	assert.Equal(t, float64(2), payload["compressionLevel"])

	// The read deadline stretches with the slower heartbeat.
	assert.Equal(t, 3*60*time.Second, c.readTimeout())
}

func TestMediumQualityKeepsHeartbeat(t *testing.T) {
	hub := &Hub{heartbeatInterval: 30 * time.Second}
	c := newClient(hub, &fakeConn{}, game.PlayerInfo{UserID: "u1"})

	c.handleTuning(&game.ClientMessage{
		Event:   game.EvConnectionQuality,
		Payload: json.RawMessage(`{"quality":0.5}`),
	})

	msg := decodeFrame(t, <-c.prioritySend)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, float64(30_000), payload["heartbeatIntervalMs"])
	assert.Equal(t, float64(32), payload["strokeBatchSize"])
	assert.Equal(t, float64(1), payload["compressionLevel"])
}
