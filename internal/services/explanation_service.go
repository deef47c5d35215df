// Package services – ExplanationService
//
// This file implements the read surface over the explanation cache. Browsing
// the cache independently of a request is an administrative capability; a
// regular user only ever sees cached text through their own ledger rows.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/repo"
)

// ExplanationService exposes admin reads over the cache.
type ExplanationService struct {
	DB *gorm.DB
}

// Get returns a cache row by id.
func (s *ExplanationService) Get(ctx context.Context, caller Identity, id uint) (*domain.EmojiExplanation, error) {
	if !caller.Admin() {
		return nil, ErrForbidden
	}
	e, err := repo.GetExplanation(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExplanationNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListPage returns a page of cache rows and the total count.
func (s *ExplanationService) ListPage(ctx context.Context, caller Identity, page, pageSize int) ([]domain.EmojiExplanation, int64, error) {
	if !caller.Admin() {
		return nil, 0, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountExplanations(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.EmojiExplanation{}, 0, nil
	}

	items, err := repo.ListExplanationsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}
