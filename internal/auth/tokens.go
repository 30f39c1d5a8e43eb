package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/HerbHall/newslens/pkg/models"
)

// PlaceholderToken is the fixed session token handed out in static mode.
const PlaceholderToken = "wVYrxaeNa9OxdnULvde1Au5m5w63"

// TokenIssuer mints the token returned with a session.
type TokenIssuer interface {
	Issue(p models.Profile) (string, error)
}

// Compile-time interface guards.
var (
	_ TokenIssuer = StaticIssuer{}
	_ TokenIssuer = (*JWTIssuer)(nil)
)

// StaticIssuer returns the same token for everyone.
type StaticIssuer struct {
	Token string // PlaceholderToken when empty
}

func (s StaticIssuer) Issue(models.Profile) (string, error) {
	if s.Token == "" {
		return PlaceholderToken, nil
	}
	return s.Token, nil
}

// JWTIssuer signs HS256 tokens whose subject is the user id.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer returns a JWTIssuer. secret must not be empty.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (j *JWTIssuer) Issue(p models.Profile) (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   p.ID,
		Issuer:    "newslens",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Parse validates token and returns its claims.
func (j *JWTIssuer) Parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
