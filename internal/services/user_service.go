// Package services – UserService
//
// This file implements the UserService, which owns account registration,
// credential verification, and role administration. Passwords are hashed with
// bcrypt before storage and never leave this package; successful logins are
// exchanged for a signed JWT carrying the user id and role.
//
// Service-level errors (e.g., ErrDuplicateEmail, ErrInvalidCredentials) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/repo"
)

// UserService provides account-level operations: registration,
// authentication, lookup, and role changes.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// JWTSecret signs and verifies issued tokens (HS256).
	JWTSecret []byte
	// TokenTTL bounds the validity of issued tokens.
	TokenTTL time.Duration
	// BCryptCost overrides bcrypt.DefaultCost when > 0.
	BCryptCost int
}

// NewUserService constructs a UserService with sane defaults.
func NewUserService(db *gorm.DB, secret []byte, ttl time.Duration) *UserService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UserService{DB: db, JWTSecret: secret, TokenTTL: ttl}
}

// emailFolder normalizes emails case-insensitively (Unicode case folding,
// not plain ASCII lowering).
var emailFolder = cases.Fold()

// NormalizeEmail trims and case-folds an email address so that uniqueness is
// enforced on the canonical form.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}

// Register creates a new account with the USER role. The email must be
// unique; a collision returns ErrDuplicateEmail and mutates nothing.
func (s *UserService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("invalid email")
	}

	cost := s.BCryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, email, string(hash), domain.RoleUser)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

// Authenticate verifies credentials and returns a signed token plus the
// account. Unknown emails and wrong passwords both map to
// ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Get returns the account for id, visible to admins and the account itself.
// Other callers receive ErrForbidden.
func (s *UserService) Get(ctx context.Context, caller Identity, id uint) (*domain.User, error) {
	if !caller.CanRead(id) {
		return nil, ErrForbidden
	}
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateRole assigns a new role to the user identified by id. The route is
// admin-gated upstream; the service still validates the role value.
func (s *UserService) UpdateRole(ctx context.Context, id uint, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := repo.UpdateUserRole(ctx, s.DB, id, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// issueToken signs an HS256 JWT with the user id as subject and the role as
// a custom claim.
func (s *UserService) issueToken(u *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(u.ID), 10),
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.TokenTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.JWTSecret)
}

// ParseToken validates a token issued by issueToken and reconstructs the
// caller identity. It rejects unexpected signing methods and expired tokens.
func (s *UserService) ParseToken(tokenString string) (Identity, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.JWTSecret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidCredentials
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, ErrInvalidCredentials
	}
	role, _ := claims["role"].(string)
	if !domain.Role(role).Valid() {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: uint(id), Role: domain.Role(role)}, nil
}
