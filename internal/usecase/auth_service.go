package usecase

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminRole = "admin"

// AdminAuthService issues and checks the HS256 tokens that guard the admin API.
type AdminAuthService struct {
	JWTSecret string
	Now       func() time.Time
}

func (s *AdminAuthService) Issue(subject string, ttl time.Duration) (string, error) {
	if s.JWTSecret == "" {
		return "", ErrUnauthorized("jwt secret not configured")
	}
	if subject == "" {
		return "", ErrBadRequest("subject required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": adminRole,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.JWTSecret))
}

// Verify returns the subject of a valid admin token.
func (s *AdminAuthService) Verify(token string) (string, error) {
	if s.JWTSecret == "" {
		return "", ErrUnauthorized("jwt secret not configured")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized("invalid token")
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrUnauthorized("invalid claims")
	}
	if role, _ := m["role"].(string); role != adminRole {
		return "", ErrUnauthorized("admin role required")
	}
	sub, _ := m["sub"].(string)
	if sub == "" {
		return "", ErrUnauthorized("subject missing")
	}
	return sub, nil
}

func (s *AdminAuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
