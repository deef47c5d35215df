package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-emoji-backend/internal/domain"
)

func newExplanationRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("explanation_repo_test_%d.db", time.Now().UnixNano()))
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

func TestLookupExplanation_MissAndHit(t *testing.T) {
	db := newExplanationRepoDB(t, &domain.EmojiExplanation{})
	ctx := context.Background()

	if _, err := LookupExplanation(ctx, db, "🦆"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty cache, got %v", err)
	}

	if err := db.Create(&domain.EmojiExplanation{Emoji: "🦆", Explanation: "a duck", CreatedAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := LookupExplanation(ctx, db, "🦆")
	if err != nil || got.Explanation != "a duck" {
		t.Fatalf("LookupExplanation hit unexpected: %v %+v", err, got)
	}
}

func TestInsertExplanationIfAbsent_FirstWriterWins(t *testing.T) {
	db := newExplanationRepoDB(t, &domain.EmojiExplanation{})
	ctx := context.Background()

	first, inserted, err := InsertExplanationIfAbsent(ctx, db, "🎃", "a pumpkin")
	if err != nil || !inserted || first.ID == 0 {
		t.Fatalf("first insert: row=%+v inserted=%v err=%v", first, inserted, err)
	}

	// Loser must receive the winner's text, never its own.
	second, inserted, err := InsertExplanationIfAbsent(ctx, db, "🎃", "LOSER TEXT")
	if err != nil || inserted {
		t.Fatalf("second insert should lose quietly: inserted=%v err=%v", inserted, err)
	}
	if second.ID != first.ID || second.Explanation != "a pumpkin" {
		t.Fatalf("loser did not observe winner's row: %+v", second)
	}

	n, err := CountExplanations(ctx, db)
	if err != nil || n != 1 {
		t.Fatalf("expected exactly one cache row, got %d (%v)", n, err)
	}
}

func TestInsertExplanationIfAbsent_ConcurrentWriters_SingleRow(t *testing.T) {
	db := newExplanationRepoDB(t, &domain.EmojiExplanation{})
	ctx := context.Background()

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, inserted, err := InsertExplanationIfAbsent(ctx, db, "🌵", fmt.Sprintf("text-%d", i))
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
				return
			}
			if inserted {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	n, err := CountExplanations(ctx, db)
	if err != nil || n != 1 {
		t.Fatalf("expected one cache row after race, got %d (%v)", n, err)
	}
}

func TestGetExplanation_And_ListPage(t *testing.T) {
	db := newExplanationRepoDB(t, &domain.EmojiExplanation{})
	ctx := context.Background()

	if _, err := GetExplanation(ctx, db, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, e := range []string{"🍕", "🍔", "🍣"} {
		if _, _, err := InsertExplanationIfAbsent(ctx, db, e, "food: "+e); err != nil {
			t.Fatalf("seed %s: %v", e, err)
		}
	}

	row, err := GetExplanation(ctx, db, 2)
	if err != nil || row.Emoji != "🍔" {
		t.Fatalf("GetExplanation(2): %v %+v", err, row)
	}

	page, err := ListExplanationsPage(ctx, db, 1, 2)
	if err != nil || len(page) != 2 || page[0].Emoji != "🍔" || page[1].Emoji != "🍣" {
		t.Fatalf("ListExplanationsPage unexpected: %v %+v", err, page)
	}
}
