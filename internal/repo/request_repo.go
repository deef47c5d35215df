// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// EmojiRequest model — the request ledger and its status state machine.
//
// The ledger is append-mostly: rows are created by the dedupe gateway and
// mutated at most once, by FinalizeRequest, which moves PENDING rows to a
// terminal state. The terminal guard lives in the UPDATE's WHERE clause so
// it is race-safe across processes without application-level locks.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
)

// ErrTerminal indicates an attempted finalize on a row that is already in a
// terminal state. In normal operation each row is finalized by exactly one
// coordinator invocation, so this signals a duplicate delivery or a bug.
var ErrTerminal = errors.New("request already finalized")

// CreateRequest inserts a ledger row for userID. On the cache-hit fast path
// the caller supplies the cached text and the row is born EXPLAINED; on a
// miss explanation is nil and the row starts PENDING.
func CreateRequest(ctx context.Context, db *gorm.DB, userID uint, emoji string, explanation *string) (*domain.EmojiRequest, error) {
	status := domain.StatusPending
	if explanation != nil {
		status = domain.StatusExplained
	}
	now := time.Now().UTC()
	r := &domain.EmojiRequest{
		UserID:      userID,
		Emoji:       emoji,
		Status:      status,
		Explanation: explanation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRequest fetches a request by primary key, or ErrNotFound if missing.
func GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.EmojiRequest, error) {
	var r domain.EmojiRequest
	if err := db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FinalizeRequest transitions a PENDING row to the given terminal status,
// populating the explanation for EXPLAINED outcomes. The WHERE clause only
// matches PENDING rows, so a second finalize (or one racing this one) affects
// zero rows and is reported as ErrTerminal; a missing row is ErrNotFound.
func FinalizeRequest(ctx context.Context, db *gorm.DB, id uint, status domain.RequestStatus, explanation *string) error {
	if !status.Terminal() {
		return errors.New("finalize status must be terminal")
	}
	res := db.WithContext(ctx).
		Model(&domain.EmojiRequest{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":      status,
			"explanation": explanation,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.EmojiRequest{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrTerminal
	}
	return nil
}

// CountRequests returns the total number of requests owned by userID,
// or across all users when userID is 0 (admin enumeration).
func CountRequests(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.EmojiRequest{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListRequestsPage returns a paginated slice of requests ordered by creation
// time descending. A userID of 0 lists across all users (admin enumeration).
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListRequestsPage(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.EmojiRequest, error) {
	q := db.WithContext(ctx).Model(&domain.EmojiRequest{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var out []domain.EmojiRequest
	err := q.Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecentExplained returns the most recently created EXPLAINED requests,
// newest first, capped at limit.
func RecentExplained(ctx context.Context, db *gorm.DB, limit int) ([]domain.EmojiRequest, error) {
	var out []domain.EmojiRequest
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusExplained).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
