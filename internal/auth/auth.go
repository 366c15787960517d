// Package auth manages the single admin identity and issues the signed
// bearer credentials that gate mutating API operations.
package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/seroka/quill/internal/apperr"
	"github.com/seroka/quill/internal/models"
	"github.com/seroka/quill/internal/storage"
)

// DefaultBootstrapPassword is the development fallback written on first run
// when no bootstrap password is configured. A warning is logged whenever it
// is still in effect.
const DefaultBootstrapPassword = "admin123"

// Service verifies admin credentials and issues/validates bearer tokens.
type Service struct {
	store  storage.Provider
	secret []byte
	ttl    time.Duration
}

// New creates the auth service and lazily bootstraps the admin record with
// the given credentials if none exists yet.
func New(store storage.Provider, secret string, ttl time.Duration, bootstrapUser, bootstrapPassword string) (*Service, error) {
	if bootstrapUser == "" {
		bootstrapUser = "admin"
	}
	if bootstrapPassword == "" {
		bootstrapPassword = DefaultBootstrapPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(bootstrapPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash bootstrap password: %w", err)
	}
	admin, err := store.LoadAdmin(models.Admin{Username: bootstrapUser, Password: string(hash)})
	if err != nil {
		return nil, err
	}
	// Password equal to the hash generated above means this call created the
	// record, i.e. no admin existed before.
	if admin.Password == string(hash) && bootstrapPassword == DefaultBootstrapPassword {
		slog.Warn("auth: admin record created with the default bootstrap password; set auth.bootstrap_password before exposing this server")
	}

	return &Service{store: store, secret: []byte(secret), ttl: ttl}, nil
}

// Admin returns the current admin record.
func (s *Service) Admin() (models.Admin, error) {
	return s.store.LoadAdmin(models.Admin{})
}

// Verify reports whether the username/password pair matches the stored
// admin record. Username comparison is exact and case-sensitive.
func (s *Service) Verify(username, password string) bool {
	admin, err := s.store.LoadAdmin(models.Admin{})
	if err != nil {
		return false
	}
	if username != admin.Username {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)) == nil
}

// Login verifies credentials, records the login time, and returns a signed
// token plus the admin record. All failures surface as ErrUnauthorized so the
// caller cannot tell which half of the pair was wrong.
func (s *Service) Login(username, password string) (string, models.Admin, error) {
	if !s.Verify(username, password) {
		return "", models.Admin{}, apperr.ErrUnauthorized
	}

	admin, err := s.store.LoadAdmin(models.Admin{})
	if err != nil {
		return "", models.Admin{}, fmt.Errorf("auth: load admin: %w", err)
	}
	now := time.Now().UTC()
	admin.LastLogin = &now
	if err := s.store.SaveAdmin(admin); err != nil {
		return "", models.Admin{}, fmt.Errorf("auth: record login: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": admin.Username,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", models.Admin{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, admin, nil
}

// Authenticate validates a bearer token and returns the admin it belongs to.
// Invalid, expired, or mismatched tokens all map to ErrUnauthorized.
func (s *Service) Authenticate(tokenString string) (models.Admin, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Admin{}, apperr.ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return models.Admin{}, apperr.ErrUnauthorized
	}

	admin, err := s.store.LoadAdmin(models.Admin{})
	if err != nil || sub != admin.Username {
		return models.Admin{}, apperr.ErrUnauthorized
	}
	return admin, nil
}
