// Package auth implements the identity provider: sign-up, sign-in,
// sign-out and password reset by email. The opaque user ID it yields is
// the partition key for persisted transaction sets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password too short (min 8 characters)")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = storage.ErrEmailTaken
)

// dummyHash is a real bcrypt hash (of a throwaway password) compared
// against when the email is unknown, so the failure path costs a full
// bcrypt verification instead of returning early.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Store is the persistence surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, u storage.User) error
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	GetUserByID(ctx context.Context, id string) (storage.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, token string) (storage.Session, error)
	DeleteSession(ctx context.Context, token string) error
	CreatePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, token string) (string, error)
}

// Mailer delivers password-reset tokens. The default implementation only
// logs the token; SMTP delivery is an operational concern wired in main.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes the reset token to the log instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	slog.InfoContext(ctx, "Password reset requested", "email", email, "token", token)
	return nil
}

type Service struct {
	store      Store
	mailer     Mailer
	sessionTTL time.Duration
	resetTTL   time.Duration
}

func NewService(store Store, mailer Mailer, sessionTTL, resetTTL time.Duration) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &Service{
		store:      store,
		mailer:     mailer,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}
}

// SignUp registers a new user and returns its opaque ID.
func (s *Service) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u := storage.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u.ID, nil
}

// SignIn verifies credentials and opens a session, returning its token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		// Burn comparable time so missing users are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	sess := storage.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return sess.Token, nil
}

// SignOut closes the session. Unknown tokens are not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to a user ID.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// RequestPasswordReset issues a reset token and hands it to the mailer.
// Unknown emails succeed silently so the endpoint does not leak accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := s.store.CreatePasswordReset(ctx, token, u.ID, time.Now().Add(s.resetTTL)); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return s.mailer.SendPasswordReset(ctx, u.Email, token)
}

// ResetPassword consumes a reset token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	userID, err := s.store.ConsumePasswordReset(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Password reset completed", "user_id", userID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.ContainsRune(email[at+1:], '.')
}
