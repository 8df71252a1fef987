package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
)

func requestContext(t *testing.T, target string, headers map[string]string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestExtractTokenFromProtocolHeader(t *testing.T) {
	c := requestContext(t, "/ws", map[string]string{
		"Sec-WebSocket-Protocol": "access_token, eyJhbGciOi.token.value",
	})

	result, err := extractToken(c)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi.token.value", result.Token)
	assert.True(t, result.FromHeader)
	assert.True(t, result.HasAccessTokenProtocol)
}

func TestExtractTokenQueryFallback(t *testing.T) {
	c := requestContext(t, "/ws?token=legacy-token", nil)

	result, err := extractToken(c)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", result.Token)
	assert.False(t, result.FromHeader)
}

func TestExtractTokenMissing(t *testing.T) {
	c := requestContext(t, "/ws", nil)

	_, err := extractToken(c)
	assert.Error(t, err)
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"http://localhost:3000", "https://play.example.com"}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	// Non-browser clients send no Origin and pass.
	assert.NoError(t, validateOrigin(req, allowed))

	req.Header.Set("Origin", "https://play.example.com")
	assert.NoError(t, validateOrigin(req, allowed))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.Error(t, validateOrigin(req, allowed))

	// Scheme must match, not just the host.
	req.Header.Set("Origin", "http://play.example.com")
	assert.Error(t, validateOrigin(req, allowed))
}

func TestDecodeClientMessage(t *testing.T) {
	msg, err := game.DecodeClientMessage([]byte(`{"event":"select_word","payload":{"word":"apple"}}`))
	require.NoError(t, err)
	assert.Equal(t, game.EvSelectWord, msg.Event)

	_, err = game.DecodeClientMessage([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	_, err = game.DecodeClientMessage([]byte(`not json`))
	assert.Error(t, err)

	oversized := make([]byte, game.MaxFrameBytes+1)
	_, err = game.DecodeClientMessage(oversized)
	assert.Error(t, err)
}
