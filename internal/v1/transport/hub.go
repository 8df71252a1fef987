package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/auth"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/config"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/ratelimit"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/registry"
)

// Hub accepts websocket upgrades, authenticates them and binds each
// connection to the registry. Room membership itself lives in the registry;
// the hub is stateless per connection.
type Hub struct {
	validator         auth.TokenValidator
	registry          *registry.Registry
	limiter           *ratelimit.RateLimiter
	allowedOrigins    []string
	heartbeatInterval time.Duration
}

// NewHub wires the websocket edge.
func NewHub(validator auth.TokenValidator, reg *registry.Registry, limiter *ratelimit.RateLimiter, cfg *config.Config) *Hub {
	return &Hub{
		validator:         validator,
		registry:          reg,
		limiter:           limiter,
		allowedOrigins:    auth.AllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"}),
		heartbeatInterval: cfg.HeartbeatInterval,
	}
}

// ServeWs authenticates the request and upgrades it to a websocket.
//
// Responses:
//   - 401 when the token is missing, invalid, or the profile is incomplete.
//   - 429 when the IP or user exceeded the connection budget.
//   - Upgrades to websocket on success.
func (h *Hub) ServeWs(c *gin.Context) {
	ctx := c.Request.Context()

	if h.limiter != nil {
		if ok, _ := h.limiter.AllowIP(ctx, c.ClientIP()); !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": string(game.ErrRateLimited)})
			return
		}
	}

	tokenResult, err := extractToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": string(game.ErrAuthFailed)})
		return
	}

	identity, err := h.validator.ValidateToken(tokenResult.Token)
	if err != nil {
		code := game.ErrAuthFailed
		if errors.Is(err, auth.ErrProfileIncomplete) {
			code = game.ErrProfileIncomplete
		}
		logging.Warn(ctx, "Websocket authentication failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": string(code)})
		return
	}

	if h.limiter != nil {
		if ok, retry := h.limiter.AllowUser(ctx, identity.UserID); !ok {
			c.Header("Retry-After", retry.Round(time.Second).String())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": string(game.ErrRateLimited)})
			return
		}
	}

	conn, err := h.upgrade(c, tokenResult)
	if err != nil {
		logging.Error(ctx, "Failed to upgrade connection", zap.Error(err))
		return
	}

	info := game.PlayerInfo{
		UserID:      game.UserID(identity.UserID),
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
	}
	client := newClient(h, conn, info)
	metrics.IncConnection()

	client.Send(game.EvAuthenticated, game.AuthenticatedPayload{OK: true, UserID: info.UserID})
	client.Send(game.EvMobileHints, game.MobileHintsPayload{
		HeartbeatIntervalMs: h.heartbeatInterval.Milliseconds(),
		StrokeBatchSize:     game.MaxStrokePoints,
		CompressionLevel:    0,
	})

	// A player still inside their disconnect grace window resumes in place.
	if room := h.registry.Lookup(info.UserID); room != nil {
		if err := room.Resume(info, client); err != nil {
			logging.Warn(ctx, "Resume into existing room failed",
				zap.String("userId", string(info.UserID)), zap.Error(err))
		}
	}

	logging.Info(ctx, "Websocket connection established",
		zap.String("userId", string(info.UserID)))

	go client.writePump()
	go client.readPump(context.Background())
}

func (h *Hub) upgrade(c *gin.Context, tokenResult *tokenExtractionResult) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	responseHeader := http.Header{}
	if tokenResult.FromHeader {
		if tokenResult.HasAccessTokenProtocol {
			responseHeader.Set("Sec-WebSocket-Protocol", "access_token")
		} else {
			responseHeader.Set("Sec-WebSocket-Protocol", tokenResult.Token)
		}
	}

	return upgrader.Upgrade(c.Writer, c.Request, responseHeader)
}
