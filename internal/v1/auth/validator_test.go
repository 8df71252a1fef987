package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromClaims(t *testing.T) {
	claims := &CustomClaims{Name: "Alice", Picture: "https://cdn/avatar.png"}
	claims.Subject = "auth0|abc"

	id, err := identityFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, "https://cdn/avatar.png", id.AvatarURL)
}

func TestIdentityFromClaimsEmailFallback(t *testing.T) {
	claims := &CustomClaims{Email: "bob@example.com"}
	claims.Subject = "auth0|bob"

	id, err := identityFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "bob", id.DisplayName)
}

func TestIdentityFromClaimsIncomplete(t *testing.T) {
	claims := &CustomClaims{}
	claims.Subject = "auth0|ghost"

	_, err := identityFromClaims(claims)
	require.ErrorIs(t, err, ErrProfileIncomplete)
}

func TestIdentityFromClaimsNoSubject(t *testing.T) {
	claims := &CustomClaims{Name: "Nameless"}

	_, err := identityFromClaims(claims)
	require.ErrorIs(t, err, ErrProfileIncomplete)
}

func fakeJWT(t *testing.T, payload map[string]any) string {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	enc := base64.RawURLEncoding.EncodeToString
	return enc([]byte(`{"alg":"none"}`)) + "." + enc(body) + "." + enc([]byte("sig"))
}

func TestMockValidatorParsesPayload(t *testing.T) {
	token := fakeJWT(t, map[string]any{
		"sub":  "user-42",
		"name": "Carol",
	})

	id, err := (&MockValidator{}).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)
	assert.Equal(t, "Carol", id.DisplayName)
}

func TestMockValidatorFallbacks(t *testing.T) {
	id, err := (&MockValidator{}).ValidateToken("garbage")
	require.NoError(t, err)
	assert.Equal(t, "dev-user-123", id.UserID)
	assert.Equal(t, "Dev User", id.DisplayName)
}

func TestAllowedOrigins(t *testing.T) {
	defaults := []string{"http://localhost:3000"}

	assert.Equal(t, defaults, AllowedOrigins("", defaults))
	assert.Equal(t,
		[]string{"https://a.example.com", "https://b.example.com"},
		AllowedOrigins("https://a.example.com,https://b.example.com", defaults))
}
