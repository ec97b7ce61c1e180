package server

import (
	"crypto/rsa"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"firmdesk/backend/internal/config"
)

// actorIDKey is the echo context key the auth middleware stores the
// authenticated user id under.
const actorIDKey = "actor_id"

// ActorID returns the authenticated user id set by AuthMiddleware, or "".
func ActorID(c echo.Context) string {
	id, _ := c.Get(actorIDKey).(string)
	return id
}

// AuthVerifier validates access tokens and extracts the subject.
type AuthVerifier struct {
	key      *rsa.PublicKey
	issuer   string
	audience string
}

// NewAuthVerifier builds a verifier from the configured public key, which may
// be inline PEM or a path to a PEM file.
func NewAuthVerifier(cfg *config.Config) (*AuthVerifier, error) {
	pem := cfg.JWTPublicKey
	if !strings.Contains(pem, "-----BEGIN") {
		b, err := os.ReadFile(pem)
		if err != nil {
			return nil, err
		}
		pem = string(b)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, err
	}
	return &AuthVerifier{key: key, issuer: cfg.JWTIssuer, audience: cfg.JWTAudience}, nil
}

// Subject parses and validates tokenString, returning its subject claim.
func (v *AuthVerifier) Subject(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

// AuthMiddleware rejects requests without a valid Bearer token and stores the
// token subject as the acting user id.
func AuthMiddleware(v *AuthVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			sub, err := v.Subject(strings.TrimPrefix(header, "Bearer "))
			if err != nil || sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(actorIDKey, sub)
			return next(c)
		}
	}
}
