package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
)

// tokenExtractionResult holds the result of token extraction.
type tokenExtractionResult struct {
	Token                  string
	FromHeader             bool
	HasAccessTokenProtocol bool
}

// extractToken pulls the bearer token from the Sec-WebSocket-Protocol
// header, falling back to the "token" query parameter.
func extractToken(c *gin.Context) (*tokenExtractionResult, error) {
	result := &tokenExtractionResult{}

	headerVal := c.GetHeader("Sec-WebSocket-Protocol")
	if headerVal != "" {
		for _, p := range strings.Split(headerVal, ",") {
			p = strings.TrimSpace(p)
			if p == "access_token" {
				result.HasAccessTokenProtocol = true
				continue
			}
			if p != "" && result.Token == "" {
				result.Token = p
				result.FromHeader = true
			}
		}
	}

	if result.Token == "" {
		result.Token = c.Query("token")
		result.FromHeader = false
		if result.Token != "" {
			logging.Warn(c.Request.Context(), "Token extracted from query parameter (legacy/less secure)")
		}
	}

	if result.Token == "" {
		return nil, fmt.Errorf("token not provided")
	}
	return result, nil
}

// validateOrigin checks the Origin header against the allow-list. Absent
// origins pass so non-browser clients can connect.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "Origin not in allowed list",
		zap.String("origin", origin))
	return fmt.Errorf("origin not allowed: %s", origin)
}
