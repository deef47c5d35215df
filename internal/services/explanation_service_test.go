package services

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
	"github.com/tbourn/go-emoji-backend/internal/repo"
)

func newExplanationServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("explanation_service_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.EmojiExplanation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestExplanationGet_AdminGate(t *testing.T) {
	db := newExplanationServiceDB(t)
	svc := &ExplanationService{DB: db}
	ctx := context.Background()

	row, _, err := repo.InsertExplanationIfAbsent(ctx, db, "🦆", "a duck")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.Get(ctx, Identity{UserID: 1, Role: domain.RoleAdmin}, row.ID)
	if err != nil || got.Emoji != "🦆" {
		t.Fatalf("admin read: %v %+v", err, got)
	}

	if _, err := svc.Get(ctx, Identity{UserID: 1, Role: domain.RoleUser}, row.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("USER read: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, Identity{UserID: 1, Role: domain.RoleAdmin}, 9999); !errors.Is(err, ErrExplanationNotFound) {
		t.Fatalf("missing row: expected ErrExplanationNotFound, got %v", err)
	}
}

func TestExplanationListPage_AdminGateAndPaging(t *testing.T) {
	db := newExplanationServiceDB(t)
	svc := &ExplanationService{DB: db}
	ctx := context.Background()

	for _, e := range []string{"🍕", "🍔", "🍣"} {
		if _, _, err := repo.InsertExplanationIfAbsent(ctx, db, e, "food"); err != nil {
			t.Fatalf("seed %s: %v", e, err)
		}
	}

	if _, _, err := svc.ListPage(ctx, Identity{UserID: 1, Role: domain.RoleUser}, 1, 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("USER listing: expected ErrForbidden, got %v", err)
	}

	items, total, err := svc.ListPage(ctx, Identity{UserID: 1, Role: domain.RoleAdmin}, 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("admin page 1: total=%d items=%d err=%v", total, len(items), err)
	}
	items, _, err = svc.ListPage(ctx, Identity{UserID: 1, Role: domain.RoleAdmin}, 2, 2)
	if err != nil || len(items) != 1 {
		t.Fatalf("admin page 2: items=%d err=%v", len(items), err)
	}
}
