package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
)

// AllowedOrigins splits a comma-separated origins value, falling back to the
// provided defaults when it is empty.
// Example: ALLOWED_ORIGINS="http://localhost:3000,https://skrawl.example.com"
func AllowedOrigins(originsStr string, defaults []string) []string {
	if originsStr == "" {
		// Provide sensible defaults for local development if the env var isn't set.
		logging.Warn(context.Background(), fmt.Sprintf("ALLOWED_ORIGINS not set. Using default development origins:\n%s", defaults))
		return defaults
	}
	return strings.Split(originsStr, ",")
}
