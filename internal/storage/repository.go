// Package storage persists users, sessions and transaction sets in SQLite.
//
// The transaction store is whole-set oriented: the application recomputes
// derived views from the full set on every cycle, so reads and writes move
// complete per-owner collections.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

type (
	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Session struct {
		Token     string
		UserID    string
		ExpiresAt time.Time
	}
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListTransactions loads the full transaction set for one owner, ordered
// ascending by date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, description, category, amount_cents
		   FROM transactions WHERE owner_id = ? ORDER BY date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			dateStr string
			t       core.Transaction
		)
		if err := rows.Scan(&dateStr, &t.Description, &t.Category, &t.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", dateStr, err)
		}
		t.Date = d
		t.OwnerID = ownerID
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceTransactions swaps the owner's whole set in a single SQL
// transaction. On any failure the previous set stays untouched.
func (r *SQLiteRepository) ReplaceTransactions(ctx context.Context, ownerID string, txs []core.Transaction) error {
	return r.writeSet(ctx, ownerID, txs, true)
}

// AppendTransactions adds records to the owner's set without touching the
// existing rows.
func (r *SQLiteRepository) AppendTransactions(ctx context.Context, ownerID string, txs []core.Transaction) error {
	return r.writeSet(ctx, ownerID, txs, false)
}

func (r *SQLiteRepository) writeSet(ctx context.Context, ownerID string, txs []core.Transaction, replace bool) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	if replace {
		if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("clear transaction set: %w", err)
		}
	}

	stmt, err := dbtx.PrepareContext(ctx,
		`INSERT INTO transactions (owner_id, date, description, category, amount_cents)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid transaction: %w", err)
		}
		_, err := stmt.ExecContext(ctx, ownerID, core.DateOnly(t.Date).Format(dateLayout),
			t.Description, t.Category, t.Amount.Cents)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction set: %w", err)
	}

	slog.InfoContext(ctx, "Transaction set saved",
		"owner_id", ownerID,
		"count", len(txs),
		"replace", replace)
	return nil
}

// CountTransactions returns the size of the owner's stored set.
func (r *SQLiteRepository) CountTransactions(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// CreateUser inserts a new user. A duplicate email maps to ErrEmailTaken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored hash, invalidating password resets is
// the caller's concern.
func (r *SQLiteRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns a live session; expired sessions are deleted on read
// and reported as ErrNotFound.
func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if time.Now().After(s.ExpiresAt) {
		_ = r.DeleteSession(ctx, token)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreatePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks a reset token used and returns its user ID.
// Unknown, expired and already-used tokens all map to ErrNotFound.
func (r *SQLiteRepository) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	var (
		userID    string
		expiresAt time.Time
		used      int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, used FROM password_resets WHERE token = ?`, token).
		Scan(&userID, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get password reset: %w", err)
	}
	if used != 0 || time.Now().After(expiresAt) {
		return "", ErrNotFound
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET used = 1 WHERE token = ?`, token); err != nil {
		return "", fmt.Errorf("consume password reset: %w", err)
	}
	return userID, nil
}
