// Package health serves the non-game control plane: liveness and static
// server metadata.
package health

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/registry"
)

// connectionCounter reports the number of live websocket connections.
type connectionCounter func() int

// Handler answers /health and /info.
type Handler struct {
	startedAt   time.Time
	registry    *registry.Registry
	connections connectionCounter
	version     string
	languages   []string
}

// NewHandler wires the control plane endpoints.
func NewHandler(reg *registry.Registry, connections connectionCounter, version string, languages []string) *Handler {
	return &Handler{
		startedAt:   time.Now(),
		registry:    reg,
		connections: connections,
		version:     version,
		languages:   languages,
	}
}

// Register mounts the endpoints on the router.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/info", h.Info)
}

// Health reports process liveness plus coarse load figures.
func (h *Handler) Health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"connections":    h.connections(),
		"memory_bytes":   mem.Alloc,
	})
}

// Info reports static server metadata.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "skrawl-server",
		"version":     h.version,
		"rooms":       h.registry.RoomCount(),
		"max_players": game.MaxRoomPlayers,
		"languages":   h.languages,
	})
}
