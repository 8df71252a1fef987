// Package auth implements the identity gateway: opaque bearer tokens are
// validated against the identity provider's JWKS endpoint and resolved to a
// stable user id plus a profile snapshot.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
)

// ErrProfileIncomplete indicates a valid token whose claims are missing the
// fields needed to build a player profile.
var ErrProfileIncomplete = errors.New("profile incomplete")

// CustomClaims represents the JWT claims issued by the identity provider.
type CustomClaims struct {
	Scope   string `json:"scope"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the profile snapshot attached to an authenticated connection.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// TokenValidator resolves a bearer token to an Identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Identity, error)
}

// Validator provides JWT validation backed by the identity provider's JWKS.
type Validator struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience []string
}

// NewValidator creates a Validator for the given identity-provider domain and
// audience. It registers the JWKS endpoint with a refreshing cache and fetches
// the keys once to verify connectivity.
func NewValidator(ctx context.Context, domain, audience string, regOpts ...jwk.RegisterOption) (*Validator, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse issuer URL: %w", err)
	}

	jwksURL := issuerURL.JoinPath(".well-known/jwks.json").String()

	cache := jwk.NewCache(ctx)

	// Combine default options with any provided options for testability.
	opts := []jwk.RegisterOption{jwk.WithRefreshInterval(1 * time.Hour)}
	opts = append(opts, regOpts...)

	err = cache.Register(jwksURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL in cache: %w", err)
	}

	// Fetch the keys for the first time to ensure connectivity.
	_, err = cache.Refresh(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch initial JWKS: %w", err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}

		keys, err := cache.Get(ctx, jwksURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get keys from cache: %w", err)
		}

		key, found := keys.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key with kid %s not found", kid)
		}

		var pubKey interface{}
		if err := key.Raw(&pubKey); err != nil {
			return nil, fmt.Errorf("failed to get raw public key: %w", err)
		}

		return pubKey, nil
	}

	return &Validator{
		keyFunc:  keyFunc,
		issuer:   issuerURL.String(),
		audience: []string{audience},
	}, nil
}

// ValidateToken parses and validates a bearer token and resolves it to an
// Identity. Returns ErrProfileIncomplete (wrapped) when the token is valid but
// carries no usable display name.
func (v *Validator) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, v.keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience[0]),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("token is invalid")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, errors.New("failed to cast claims to CustomClaims")
	}

	return identityFromClaims(claims)
}

// identityFromClaims builds the profile snapshot from validated claims.
func identityFromClaims(claims *CustomClaims) (*Identity, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrProfileIncomplete)
	}

	displayName := claims.Name
	if displayName == "" && claims.Email != "" {
		// Fall back to the email local part.
		if parts := strings.Split(claims.Email, "@"); len(parts) > 0 {
			displayName = parts[0]
		}
	}
	if displayName == "" {
		logging.Warn(context.Background(), "Token missing display name",
			zap.String("sub", claims.Subject),
			zap.String("email", logging.RedactEmail(claims.Email)))
		return nil, fmt.Errorf("%w: no display name in claims", ErrProfileIncomplete)
	}

	return &Identity{
		UserID:      claims.Subject,
		DisplayName: displayName,
		AvatarURL:   claims.Picture,
	}, nil
}

// MockValidator is a development-only token validator that accepts any token.
// It decodes the JWT payload without verifying the signature so that the
// user id stays consistent between client and server in dev mode.
type MockValidator struct{}

func (m *MockValidator) ValidateToken(tokenString string) (*Identity, error) {
	var subject, name, picture string

	parts := strings.Split(tokenString, ".")
	if len(parts) == 3 {
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err == nil {
			var claims map[string]interface{}
			if json.Unmarshal(payload, &claims) == nil {
				if sub, ok := claims["sub"].(string); ok {
					subject = sub
				}
				if n, ok := claims["name"].(string); ok {
					name = n
				}
				if p, ok := claims["picture"].(string); ok {
					picture = p
				}
			}
		}
	}

	if subject == "" {
		subject = "dev-user-123"
	}
	if name == "" {
		name = "Dev User"
	}

	return &Identity{
		UserID:      subject,
		DisplayName: name,
		AvatarURL:   picture,
	}, nil
}
