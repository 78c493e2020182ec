package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/indieinfra/pantry/config"
)

const RoleAdmin = "admin"

type tokenKeyType struct{}

var tokenKey = tokenKeyType{}

// AdminClaims are the claims pantry reads from a bearer token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrEmptyToken = errors.New("received empty token")
	ErrNotAdmin   = errors.New("token does not carry the admin role")
)

// ExtractBearerToken extracts a Bearer token from an Authorization header value.
// Returns an empty string if the header is not present, malformed, or not a Bearer token.
func ExtractBearerToken(auth string) string {
	if auth == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

func AddToken(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, tokenKey, claims)
}

func GetToken(ctx context.Context) *AdminClaims {
	claims, ok := ctx.Value(tokenKey).(*AdminClaims)
	if !ok {
		return nil
	}

	return claims
}

func (c *AdminClaims) String() string {
	return fmt.Sprintf("AdminClaims{sub=%v, role=%v, iss=%v}", c.Subject, c.Role, c.Issuer)
}

// VerifyAdminToken checks an HS256 token against the configured secret and
// issuer and requires the admin role. Expiry is enforced when present.
func VerifyAdminToken(cfg *config.ServerAuth, token string) (*AdminClaims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	if !strings.EqualFold(claims.Role, RoleAdmin) {
		return nil, ErrNotAdmin
	}

	return claims, nil
}
