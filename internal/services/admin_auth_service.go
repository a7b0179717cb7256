package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	goodies_errors "goodies-platform/pkg/errors"
)

const RoleAdmin = "admin"

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthService exchanges the operator key for short-lived tokens.
type AdminAuthService struct {
	jwtSecret []byte
	keyHash   []byte
	ttl       time.Duration
	clock     func() time.Time
}

func NewAdminAuthService(jwtSecret, keyHash string, ttl time.Duration) *AdminAuthService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AdminAuthService{
		jwtSecret: []byte(jwtSecret),
		keyHash:   []byte(keyHash),
		ttl:       ttl,
		clock:     time.Now,
	}
}

// Enabled is false when no secret or key hash is configured; the admin
// API then refuses every request.
func (s *AdminAuthService) Enabled() bool {
	return len(s.jwtSecret) > 0 && len(s.keyHash) > 0
}

func (s *AdminAuthService) Login(adminKey string) (string, int64, error) {
	if !s.Enabled() || adminKey == "" {
		return "", 0, goodies_errors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(adminKey)); err != nil {
		return "", 0, goodies_errors.ErrUnauthorized
	}
	return s.IssueToken("admin")
}

// IssueToken signs a token without checking the admin key. The CLI uses
// it directly with access to the secret.
func (s *AdminAuthService) IssueToken(subject string) (string, int64, error) {
	if len(s.jwtSecret) == 0 {
		return "", 0, errors.New("admin jwt secret not configured")
	}
	now := s.clock()
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.ttl.Seconds()), nil
}

func (s *AdminAuthService) ParseToken(tokenString string) (AdminClaims, error) {
	if tokenString == "" || len(s.jwtSecret) == 0 {
		return AdminClaims{}, goodies_errors.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goodies_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil {
		return AdminClaims{}, goodies_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return AdminClaims{}, goodies_errors.ErrUnauthorized
	}
	if claims.Role != RoleAdmin {
		return AdminClaims{}, goodies_errors.ErrForbidden
	}
	return *claims, nil
}

// HashAdminKey produces the value for ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
