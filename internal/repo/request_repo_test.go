package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-emoji-backend/internal/domain"
)

func newRequestRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("request_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedRequestUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()
	u, err := CreateUser(context.Background(), db, email, "h", domain.RoleUser)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func strptr(s string) *string { return &s }

func TestCreateRequest_PendingOnMiss(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	uid := seedRequestUser(t, db, "miss@example.com")

	r, err := CreateRequest(context.Background(), db, uid, "🦆", nil)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if r.ID == 0 || r.Status != domain.StatusPending || r.Explanation != nil {
		t.Fatalf("unexpected row: %+v", r)
	}
	if !r.CreatedAt.Equal(r.UpdatedAt) {
		t.Fatalf("fresh row should have CreatedAt == UpdatedAt: %v vs %v", r.CreatedAt, r.UpdatedAt)
	}
}

func TestCreateRequest_ExplainedOnHit(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	uid := seedRequestUser(t, db, "hit@example.com")

	r, err := CreateRequest(context.Background(), db, uid, "🦆", strptr("a duck"))
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if r.Status != domain.StatusExplained || r.Explanation == nil || *r.Explanation != "a duck" {
		t.Fatalf("expected terminal EXPLAINED row, got %+v", r)
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	if _, err := GetRequest(context.Background(), db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalizeRequest_PendingToExplained(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	uid := seedRequestUser(t, db, "fin@example.com")
	ctx := context.Background()

	r, err := CreateRequest(ctx, db, uid, "🎃", nil)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if err := FinalizeRequest(ctx, db, r.ID, domain.StatusExplained, strptr("a pumpkin")); err != nil {
		t.Fatalf("FinalizeRequest: %v", err)
	}

	got, err := GetRequest(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != domain.StatusExplained || got.Explanation == nil || *got.Explanation != "a pumpkin" {
		t.Fatalf("finalized row unexpected: %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Fatalf("UpdatedAt went backwards: %+v", got)
	}
}

func TestFinalizeRequest_PendingToFailed_NoExplanation(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	uid := seedRequestUser(t, db, "fail@example.com")
	ctx := context.Background()

	r, err := CreateRequest(ctx, db, uid, "🧨", nil)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := FinalizeRequest(ctx, db, r.ID, domain.StatusFailed, nil); err != nil {
		t.Fatalf("FinalizeRequest: %v", err)
	}
	got, _ := GetRequest(ctx, db, r.ID)
	if got.Status != domain.StatusFailed || got.Explanation != nil {
		t.Fatalf("failed row unexpected: %+v", got)
	}
}

func TestFinalizeRequest_TerminalRow_ReturnsErrTerminal(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	uid := seedRequestUser(t, db, "term@example.com")
	ctx := context.Background()

	r, err := CreateRequest(ctx, db, uid, "🌵", nil)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := FinalizeRequest(ctx, db, r.ID, domain.StatusExplained, strptr("a cactus")); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	// Second finalize must not overwrite the terminal state.
	err = FinalizeRequest(ctx, db, r.ID, domain.StatusFailed, nil)
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	got, _ := GetRequest(ctx, db, r.ID)
	if got.Status != domain.StatusExplained || got.Explanation == nil {
		t.Fatalf("terminal row mutated: %+v", got)
	}
}

func TestFinalizeRequest_MissingRow_ReturnsErrNotFound(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	err := FinalizeRequest(context.Background(), db, 777, domain.StatusFailed, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalizeRequest_RejectsNonTerminalStatus(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	if err := FinalizeRequest(context.Background(), db, 1, domain.StatusPending, nil); err == nil {
		t.Fatalf("expected error for non-terminal finalize status")
	}
}

func TestListRequestsPage_OrderScopeAndPaging(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	ctx := context.Background()
	u1 := seedRequestUser(t, db, "u1@example.com")
	u2 := seedRequestUser(t, db, "u2@example.com")

	// Seed with known CreatedAt so order is deterministic.
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	seed := []domain.EmojiRequest{
		{UserID: u1, Emoji: "🐙", Status: domain.StatusPending, CreatedAt: base, UpdatedAt: base},
		{UserID: u1, Emoji: "🐳", Status: domain.StatusPending, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{UserID: u2, Emoji: "🐌", Status: domain.StatusPending, CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// Owner scope: newest first.
	got, err := ListRequestsPage(ctx, db, u1, 0, 10)
	if err != nil {
		t.Fatalf("ListRequestsPage: %v", err)
	}
	if len(got) != 2 || got[0].Emoji != "🐳" || got[1].Emoji != "🐙" {
		t.Fatalf("owner page unexpected: %+v", got)
	}

	// Admin scope (userID 0): everything, newest first.
	all, err := ListRequestsPage(ctx, db, 0, 0, 10)
	if err != nil || len(all) != 3 || all[0].Emoji != "🐌" {
		t.Fatalf("admin page unexpected: %v %+v", err, all)
	}

	// Paging.
	page2, err := ListRequestsPage(ctx, db, 0, 2, 2)
	if err != nil || len(page2) != 1 || page2[0].Emoji != "🐙" {
		t.Fatalf("page 2 unexpected: %v %+v", err, page2)
	}

	n, err := CountRequests(ctx, db, u1)
	if err != nil || n != 2 {
		t.Fatalf("CountRequests(u1) = %d, %v", n, err)
	}
	n, err = CountRequests(ctx, db, 0)
	if err != nil || n != 3 {
		t.Fatalf("CountRequests(all) = %d, %v", n, err)
	}
}

func TestRecentExplained_FiltersAndCaps(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{}, &domain.EmojiRequest{})
	ctx := context.Background()
	uid := seedRequestUser(t, db, "recent@example.com")

	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	rows := []domain.EmojiRequest{
		{UserID: uid, Emoji: "🍕", Status: domain.StatusExplained, Explanation: strptr("pizza"), CreatedAt: base, UpdatedAt: base},
		{UserID: uid, Emoji: "🍔", Status: domain.StatusFailed, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)},
		{UserID: uid, Emoji: "🍣", Status: domain.StatusExplained, Explanation: strptr("sushi"), CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
		{UserID: uid, Emoji: "🥐", Status: domain.StatusPending, CreatedAt: base.Add(3 * time.Minute), UpdatedAt: base.Add(3 * time.Minute)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := RecentExplained(ctx, db, 10)
	if err != nil {
		t.Fatalf("RecentExplained: %v", err)
	}
	if len(got) != 2 || got[0].Emoji != "🍣" || got[1].Emoji != "🍕" {
		t.Fatalf("recent explained unexpected: %+v", got)
	}

	capped, err := RecentExplained(ctx, db, 1)
	if err != nil || len(capped) != 1 || capped[0].Emoji != "🍣" {
		t.Fatalf("capped recent unexpected: %v %+v", err, capped)
	}
}
