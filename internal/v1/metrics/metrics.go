package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the skrawl game server.
//
// Naming convention: namespace_subsystem_name
// - namespace: skrawl (application-level grouping)
// - subsystem: websocket, room, game (feature-level grouping)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, players)
// - Counter: Cumulative events (messages processed, drops)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skrawl",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skrawl",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPlayers tracks the number of players in each room
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skrawl",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks the total number of WebSocket events processed
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time a room spends applying one event
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skrawl",
		Subsystem: "room",
		Name:      "event_processing_seconds",
		Help:      "Time spent applying room events",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"event_type"})

	// DroppedOutboundEvents counts events dropped because a client send
	// queue was full
	DroppedOutboundEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "websocket",
		Name:      "dropped_outbound_total",
		Help:      "Outbound events dropped because a client queue was full",
	})

	// DroppedInboundCommands counts client commands dropped because a
	// room's input queue was full
	DroppedInboundCommands = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "room",
		Name:      "dropped_inbound_total",
		Help:      "Inbound commands dropped because a room input queue was full",
	})

	// GuessesTotal counts classified guess outcomes
	GuessesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "game",
		Name:      "guesses_total",
		Help:      "Chat lines classified by the guess evaluator",
	}, []string{"verdict"})

	// GamesCompleted counts finished games
	GamesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "game",
		Name:      "games_completed_total",
		Help:      "Games that reached the finished state",
	})

	// RateLimitExceeded counts rejected requests by scope
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "websocket",
		Name:      "rate_limit_exceeded_total",
		Help:      "Requests rejected by rate limiting",
	}, []string{"scope", "kind"})

	// CircuitBreakerState exposes breaker state per dependency (0 closed, 1 open, 2 half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skrawl",
		Subsystem: "store",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per dependency (0=closed, 1=open, 2=half-open)",
	}, []string{"dependency"})

	// CircuitBreakerFailures counts calls short-circuited by an open breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skrawl",
		Subsystem: "store",
		Name:      "circuit_breaker_failures_total",
		Help:      "Calls rejected because a circuit breaker was open",
	}, []string{"dependency"})
)

// connectionCount mirrors the gauge so the health endpoint can read it.
var connectionCount atomic.Int64

func IncConnection() {
	ActiveWebSocketConnections.Inc()
	connectionCount.Add(1)
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
	connectionCount.Add(-1)
}

// ConnectionCount reports the current number of websocket connections.
func ConnectionCount() int {
	return int(connectionCount.Load())
}
