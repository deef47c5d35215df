// Package services – RequestService
//
// This file implements the dedupe gateway and the read surface over the
// request ledger. Submit consults the explanation cache: a hit creates the
// ledger row already EXPLAINED with the cached text and does no generation
// work; a miss creates the row PENDING and hands it to the generation
// coordinator, returning immediately.
//
// The gateway deliberately performs a single cache lookup. If another
// submission populates the cache between the lookup and the PENDING insert,
// the coordinator resolves the race downstream via the cache's
// insert-if-absent primitive; a second check here would only be an
// efficiency tweak, never a correctness requirement.
//
// Observability: Submit is OpenTelemetry-instrumented; spans carry the user
// id and the cache-hit outcome.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/repo"
)

// Enqueuer hands PENDING ledger rows to the generation coordinator.
// Implementations must not block Submit longer than queue admission takes.
type Enqueuer interface {
	Enqueue(requestID uint, emoji string)
}

// RequestService implements the dedupe gateway and ledger reads.
type RequestService struct {
	DB    *gorm.DB
	Queue Enqueuer

	// MaxEmojiRunes caps submissions by rune length; 0 disables the check.
	MaxEmojiRunes int
}

// Submit records a submission for userID and returns the created ledger row.
// On a cache hit, the row is created terminal (EXPLAINED) with the cached
// text and createdAt == updatedAt. On a miss, the row starts PENDING and the
// (requestID, emoji) pair is enqueued for asynchronous generation; Submit
// does not wait for generation to complete.
func (s *RequestService) Submit(ctx context.Context, userID uint, emoji string) (*domain.EmojiRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, ErrEmptyEmoji
	}
	if s.MaxEmojiRunes > 0 && utf8.RuneCountInString(emoji) > s.MaxEmojiRunes {
		return nil, ErrEmojiTooLong
	}

	// The caller layer normally guarantees identity, but the core still
	// rejects unknown user ids.
	exists, err := repo.UserExists(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	cached, err := repo.LookupExplanation(ctx, s.DB, emoji)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		text := cached.Explanation
		return repo.CreateRequest(ctx, s.DB, userID, emoji, &text)
	case errors.Is(err, gorm.ErrRecordNotFound):
		span.SetAttributes(attribute.Bool("cache.hit", false))
	default:
		return nil, err
	}

	r, err := repo.CreateRequest(ctx, s.DB, userID, emoji, nil)
	if err != nil {
		return nil, err
	}
	s.Queue.Enqueue(r.ID, emoji)
	return r, nil
}

// Get returns a single ledger row. Owners and admins see the row; other
// callers receive ErrRequestNotFound so existence is not disclosed.
func (s *RequestService) Get(ctx context.Context, caller Identity, id uint) (*domain.EmojiRequest, error) {
	r, err := repo.GetRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if !caller.CanRead(r.UserID) {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

// ListPage returns a page of ledger rows and the total count. Regular users
// list their own rows; all=true enumerates every user's rows and requires
// the ADMIN capability.
func (s *RequestService) ListPage(ctx context.Context, caller Identity, page, pageSize int, all bool) ([]domain.EmojiRequest, int64, error) {
	if all && !caller.Admin() {
		return nil, 0, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	scope := caller.UserID
	if all {
		scope = 0
	}

	total, err := repo.CountRequests(ctx, s.DB, scope)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.EmojiRequest{}, 0, nil
	}

	items, err := repo.ListRequestsPage(ctx, s.DB, scope, offset, pageSize)
	return items, total, err
}

// Recent returns the most recently explained submissions, newest first.
// The limit defaults to 10 and is capped at 50.
func (s *RequestService) Recent(ctx context.Context, limit int) ([]domain.EmojiRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return repo.RecentExplained(ctx, s.DB, limit)
}
