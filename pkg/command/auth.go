package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/harunnryd/vira/pkg/errorsx"
)

// LocalUserID is the fiber.Ctx local holding the authenticated subject.
const LocalUserID = "user_id"

// TokenCookie is the cookie the web client stores its session token in.
const TokenCookie = "token"

var ErrNoToken = errors.New("no token provided")

// Authenticator decides whether a request may use the command channel and
// returns the caller's subject.
type Authenticator interface {
	Authenticate(c *fiber.Ctx) (string, error)
}

// AllowAll accepts every request as Subject. Used when no secret is configured.
type AllowAll struct {
	Subject string
}

func (a AllowAll) Authenticate(*fiber.Ctx) (string, error) {
	if a.Subject == "" {
		return "anonymous", nil
	}
	return a.Subject, nil
}

// JWTAuthenticator validates HS256 tokens from the "token" cookie or an
// Authorization: Bearer header.
type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTAuthenticator(secret string, ttl time.Duration) *JWTAuthenticator {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &JWTAuthenticator{secret: []byte(secret), ttl: ttl}
}

func (a *JWTAuthenticator) Authenticate(c *fiber.Ctx) (string, error) {
	token := c.Cookies(TokenCookie)
	if token == "" {
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return "", errorsx.New(errorsx.ReasonCommandUnauthorized, "invalid authorization header format")
			}
			token = strings.TrimSpace(parts[1])
		}
	}
	if token == "" {
		return "", errorsx.Wrap(ErrNoToken, errorsx.ReasonCommandUnauthorized)
	}
	return a.Validate(token)
}

// Validate parses token and returns its subject.
func (a *JWTAuthenticator) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", errorsx.Errorf(errorsx.ReasonCommandUnauthorized, "invalid token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errorsx.New(errorsx.ReasonCommandUnauthorized, "invalid token claims")
	}
	return claims.Subject, nil
}

// IssueToken signs a token for subject. Used by tooling and tests.
func (a *JWTAuthenticator) IssueToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// AuthRequired rejects requests the Authenticator refuses with 401.
func AuthRequired(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject, err := auth.Authenticate(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Authentication failed. Please log in again.",
			})
		}
		c.Locals(LocalUserID, subject)
		return c.Next()
	}
}
