// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// EmojiExplanation model — the content-addressed explanation cache.
//
// The cache's single concurrency primitive is the unique index on emoji.
// InsertExplanationIfAbsent is implemented as "attempt insert; on conflict,
// re-read the winner", which is race-safe across independent processes.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
)

// LookupExplanation returns the cached explanation for emoji, or ErrNotFound.
func LookupExplanation(ctx context.Context, db *gorm.DB, emoji string) (*domain.EmojiExplanation, error) {
	var e domain.EmojiExplanation
	if err := db.WithContext(ctx).Where("emoji = ?", emoji).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetExplanation fetches a cache row by primary key, or ErrNotFound.
func GetExplanation(ctx context.Context, db *gorm.DB, id uint) (*domain.EmojiExplanation, error) {
	var e domain.EmojiExplanation
	if err := db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertExplanationIfAbsent atomically stores an explanation for emoji unless
// one already exists. Exactly one concurrent caller observes inserted=true;
// every other caller gets inserted=false together with the row the winner
// stored, never its own text.
func InsertExplanationIfAbsent(ctx context.Context, db *gorm.DB, emoji, explanation string) (*domain.EmojiExplanation, bool, error) {
	e := &domain.EmojiExplanation{
		Emoji:       emoji,
		Explanation: explanation,
		CreatedAt:   time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(e).Error
	if err == nil {
		return e, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, err
	}
	winner, rerr := LookupExplanation(ctx, db, emoji)
	if rerr != nil {
		// Lost the race but the winner's row is not readable; surface the
		// original conflict so the caller can fail the request.
		if errors.Is(rerr, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
		return nil, false, rerr
	}
	return winner, false, nil
}

// CountExplanations returns the total number of cache rows.
func CountExplanations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.EmojiExplanation{}).Count(&total).Error
	return total, err
}

// ListExplanationsPage returns a page of cache rows ordered by id ascending.
// Browsing the cache independently of a request is an administrative
// capability; the service layer gates access.
func ListExplanationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.EmojiExplanation, error) {
	var out []domain.EmojiExplanation
	err := db.WithContext(ctx).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
