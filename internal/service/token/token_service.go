package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Service issues and validates actor tokens. There is no credential
// check behind it: any non-empty username gets a token, and the ledger
// only ever depends on the resulting non-empty actor id.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a token service with an HS256 secret.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token carrying the actor id.
func (s *Service) Issue(actorID string) (string, error) {
	if actorID == "" {
		return "", fmt.Errorf("actor id is required")
	}

	claims := jwt.MapClaims{
		"sub": actorID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns the actor id it carries.
func (s *Service) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	actorID, _ := claims["sub"].(string)
	if actorID == "" {
		return "", ErrInvalidToken
	}
	return actorID, nil
}
