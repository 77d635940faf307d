package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/notesync-be/internal/models"
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

// Signer issues and validates short-lived HS256 tokens.
type Signer struct {
	Key []byte
	TTL time.Duration
}

// NewSigner creates a Signer from a secret and token lifetime.
func NewSigner(secret string, ttl time.Duration) Signer {
	return Signer{Key: []byte(secret), TTL: ttl}
}

// GenerateJWT creates a new JWT for a given user.
func (s Signer) GenerateJWT(user models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     user.ID,
		Username:   user.Username,
		Generation: user.TokenGeneration,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Key)
}

// ValidateJWT parses and validates a JWT string.
func (s Signer) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.Key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// LooksLikeJWT reports whether a bearer credential has the three-segment shape
// of a signed token rather than an opaque permanent token.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
