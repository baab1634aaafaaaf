package identity

import (
	"fmt"
	"time"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/models"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Role       models.Role `json:"role"`
	Restaurant string      `json:"restaurant,omitempty"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Issue(s *Staff) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:       s.Role,
		Restaurant: s.RestaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve validates a bearer token and returns the actor it names.
func (t *Tokens) Resolve(raw string) (models.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, apperr.Unauthorizedf("invalid token")
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleDirector, models.RoleWaiter:
	default:
		return models.Actor{}, apperr.Unauthorizedf("invalid token")
	}
	return models.Actor{ID: claims.Subject, Role: claims.Role, RestaurantID: claims.Restaurant}, nil
}
