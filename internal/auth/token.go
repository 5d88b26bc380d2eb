package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
)

// Claims carries the caller identity. sub holds the user id.
type Claims struct {
	OrgID string `json:"org_id,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenManager(cfg config.Config, clk clock.Clock) (*TokenManager, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		secret = "billdesk-development-secret"
	}
	ttl := time.Duration(cfg.AuthTokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: cfg.AuthJWTIssuer,
		ttl:    ttl,
		clock:  clock.OrSystem(clk),
	}, nil
}

// Issue signs a token for identity.
func (m *TokenManager) Issue(identity orgcontext.Identity) (string, error) {
	if identity.UserID == 0 {
		return "", ErrInvalidClaims
	}

	now := m.clock.Now()
	claims := Claims{
		Role: strings.ToLower(strings.TrimSpace(identity.Role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if identity.OrgID != 0 {
		claims.OrgID = identity.OrgID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses raw and returns the identity it carries.
func (m *TokenManager) Verify(raw string) (orgcontext.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return orgcontext.Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return orgcontext.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return orgcontext.Identity{}, ErrInvalidClaims
	}
	identity := orgcontext.Identity{
		UserID: userID,
		Role:   strings.ToLower(strings.TrimSpace(claims.Role)),
	}
	if claims.OrgID != "" {
		orgID, err := snowflake.ParseString(claims.OrgID)
		if err != nil {
			return orgcontext.Identity{}, ErrInvalidClaims
		}
		identity.OrgID = orgID
	}
	return identity, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		token := strings.TrimSpace(header[7:])
		if token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}
