package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"furnidesk/backend/internal/domain"
)

const tokenIssuer = "furnidesk"

// AuthManager verifies bearer tokens minted by the upstream identity
// provider with a shared HS256 secret. The token subject becomes the audit
// actor.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
}

type actorClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// NewAuthManager returns nil for an empty secret, which leaves the API open.
func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &actorClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

// IssueToken signs a token for username valid for the manager's TTL. Used
// by operators and tests; regular clients get tokens upstream.
func (a *AuthManager) IssueToken(username string, role string) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, role, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := actorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
