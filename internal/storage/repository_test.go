package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, id, email string) {
	t.Helper()
	if err := repo.CreateUser(context.Background(), User{ID: id, Email: email, PasswordHash: "x"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func testTx(date string, desc string, cents int64) core.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	return core.Transaction{Date: d, Description: desc, Category: "Spesa", Amount: core.Money{Cents: cents}}
}

func TestTransactionSetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")

	set := []core.Transaction{
		testTx("2024-01-05", "stipendio", 200000),
		testTx("2024-01-10", "spesa", -4590),
	}
	if err := repo.ReplaceTransactions(ctx, "u1", set); err != nil {
		t.Fatalf("ReplaceTransactions: %v", err)
	}

	got, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	if got[0].Description != "stipendio" || got[0].Amount.Cents != 200000 {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[0].OwnerID != "u1" {
		t.Errorf("owner not set on load: %+v", got[0])
	}
	if !got[0].Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date round trip failed: %v", got[0].Date)
	}
}

func TestReplaceOverwritesWholeSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")

	if err := repo.ReplaceTransactions(ctx, "u1", []core.Transaction{testTx("2024-01-10", "a", -1)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceTransactions(ctx, "u1", []core.Transaction{testTx("2024-02-10", "b", -2)}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Description != "b" {
		t.Fatalf("replace did not overwrite: %+v", got)
	}
}

func TestAppendKeepsExistingRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")

	if err := repo.AppendTransactions(ctx, "u1", []core.Transaction{testTx("2024-01-10", "a", -1)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.AppendTransactions(ctx, "u1", []core.Transaction{testTx("2024-02-10", "b", -2)}); err != nil {
		t.Fatal(err)
	}

	n, err := repo.CountTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestTransactionSetsArePartitionedByOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")
	seedUser(t, repo, "u2", "u2@example.com")

	if err := repo.ReplaceTransactions(ctx, "u1", []core.Transaction{testTx("2024-01-10", "a", -1)}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListTransactions(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("owner partition leaked: %+v", got)
	}
}

func TestInvalidTransactionAbortsWrite(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")

	err := repo.ReplaceTransactions(ctx, "u1", []core.Transaction{
		testTx("2024-01-10", "ok", -1),
		{Description: "zero date"},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	n, _ := repo.CountTransactions(ctx, "u1")
	if n != 0 {
		t.Fatalf("partial write detected: %d rows", n)
	}
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := User{ID: "u1", Email: "a@example.com", PasswordHash: "h1"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := repo.CreateUser(ctx, User{ID: "u2", Email: "a@example.com", PasswordHash: "h2"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := repo.GetUserByEmail(ctx, "a@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}
	if _, err := repo.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, "u1", "h3"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	got, _ = repo.GetUserByID(ctx, "u1")
	if got.PasswordHash != "h3" {
		t.Errorf("password hash not updated: %+v", got)
	}
}

func TestSessionExpiry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")

	live := Session{Token: "tok-live", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	dead := Session{Token: "tok-dead", UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}
	for _, s := range []Session{live, dead} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	if _, err := repo.GetSession(ctx, "tok-live"); err != nil {
		t.Errorf("live session rejected: %v", err)
	}
	if _, err := repo.GetSession(ctx, "tok-dead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session accepted: %v", err)
	}

	if err := repo.DeleteSession(ctx, "tok-live"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetSession(ctx, "tok-live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session still readable")
	}
}

func TestPasswordResetSingleUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "u1@example.com")

	if err := repo.CreatePasswordReset(ctx, "rst-1", "u1", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	userID, err := repo.ConsumePasswordReset(ctx, "rst-1")
	if err != nil || userID != "u1" {
		t.Fatalf("ConsumePasswordReset = %q, %v", userID, err)
	}
	if _, err := repo.ConsumePasswordReset(ctx, "rst-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token reused: %v", err)
	}

	if err := repo.CreatePasswordReset(ctx, "rst-old", "u1", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ConsumePasswordReset(ctx, "rst-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token accepted: %v", err)
	}
}
