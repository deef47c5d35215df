// Request HTTP handlers.
//
// This file exposes REST endpoints for the request ledger:
//   - POST   /requests        (submit an emoji; idempotency-key aware)
//   - GET    /requests        (list, paginated, ETag support; ?all=1 for admins)
//   - GET    /requests/{id}   (fetch one)
//   - GET    /emojis/recent   (recently explained submissions)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including conditional
// responses and idempotent replays).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/http/middleware"
	"github.com/tbourn/go-emoji-backend/internal/repo"
	"github.com/tbourn/go-emoji-backend/internal/services"
	"github.com/tbourn/go-emoji-backend/internal/sysutil"
	"github.com/tbourn/go-emoji-backend/internal/utils"
)

// RequestService defines ledger operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RequestService interface {
	// Submit records a submission and returns the created ledger row.
	Submit(ctx context.Context, userID uint, emoji string) (*domain.EmojiRequest, error)
	// Get returns a single ledger row visible to the caller.
	Get(ctx context.Context, caller services.Identity, id uint) (*domain.EmojiRequest, error)
	// ListPage returns a page of ledger rows and the total count.
	ListPage(ctx context.Context, caller services.Identity, page, pageSize int, all bool) ([]domain.EmojiRequest, int64, error)
	// Recent returns the most recently explained submissions.
	Recent(ctx context.Context, limit int) ([]domain.EmojiRequest, error)
}

// ExplanationService defines cache reads consumed by HTTP handlers.
type ExplanationService interface {
	// Get returns a cache row by id (admin capability).
	Get(ctx context.Context, caller services.Identity, id uint) (*domain.EmojiExplanation, error)
	// ListPage returns a page of cache rows and the total count (admin capability).
	ListPage(ctx context.Context, caller services.Identity, page, pageSize int) ([]domain.EmojiExplanation, int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for accounts, requests, and the cache.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic; the raw DB handle is used only for
// idempotency records and ETag statistics.
type Handlers struct {
	db      *gorm.DB
	userSvc UserService
	reqSvc  RequestService
	expSvc  ExplanationService

	// IdempotencyTTL bounds how long a stored Idempotency-Key remains valid.
	IdempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(db *gorm.DB, userSvc UserService, reqSvc RequestService, expSvc ExplanationService, idemTTL time.Duration) *Handlers {
	return &Handlers{db: db, userSvc: userSvc, reqSvc: reqSvc, expSvc: expSvc, IdempotencyTTL: idemTTL}
}

//
// DTOs
//

// SubmitRequestPayload is the JSON payload for submitting an emoji.
type SubmitRequestPayload struct {
	Emoji string `json:"emoji" binding:"required" example:"😀"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRequestsResponse wraps a page of ledger rows and pagination information.
type ListRequestsResponse struct {
	Requests   []domain.EmojiRequest `json:"requests"`
	Pagination Pagination            `json:"pagination"`
}

// RecentEmoji is one entry of the recently-explained listing.
type RecentEmoji struct {
	Emoji       string  `json:"emoji"`
	Explanation *string `json:"explanation,omitempty"`
}

// RecentEmojisResponse lists recently explained submissions, newest first.
type RecentEmojisResponse struct {
	Emojis []RecentEmoji `json:"emojis"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pathID parses the :id path parameter as an unsigned integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

//
// Handlers
//

// SubmitRequest godoc
// @ID          submitRequest
// @Summary     Submit an emoji for explanation
// @Description Creates a ledger row for the submitted emoji. A cached emoji resolves immediately (201, EXPLAINED); a new one is queued for generation (202, PENDING). An Idempotency-Key header makes retries safe.
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body  body  handlers.SubmitRequestPayload  true  "Submission payload"
// @Success     201  {object}  domain.EmojiRequest "Resolved from cache"
// @Success     202  {object}  domain.EmojiRequest "Queued for generation"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /requests [post]
func (h *Handlers) SubmitRequest(c *gin.Context) {
	ctx := c.Request.Context()
	caller := middleware.IdentityFrom(c)

	var req SubmitRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "emoji required")
		return
	}

	// Serve a stored replay without re-executing the submission.
	if middleware.IsReplay(c) {
		if key, okKey := middleware.GetIdempotencyKey(c); okKey {
			if r := h.replayRequest(c, caller, key); r != nil {
				ok(c, http.StatusOK, r)
				return
			}
		}
	}

	r, err := h.reqSvc.Submit(ctx, caller.UserID, req.Emoji)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyEmoji), errors.Is(err, services.ErrEmojiTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
		}
		return
	}

	// Best effort: record the idempotency key so a retry replays this row.
	if key, okKey := middleware.GetIdempotencyKey(c); okKey {
		_, _ = repo.CreateIdempotency(ctx, h.db, caller.UserID, key, r.ID, http.StatusCreated, h.IdempotencyTTL)
	}

	status := http.StatusCreated
	if r.Status == domain.StatusPending {
		status = http.StatusAccepted
	}
	ok(c, status, r)
}

// replayRequest loads the ledger row recorded for (caller, key). It returns
// nil when the record or the row is gone, letting the caller fall through to
// a fresh submission.
func (h *Handlers) replayRequest(c *gin.Context, caller services.Identity, key string) *domain.EmojiRequest {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, caller.UserID, key, time.Now().UTC())
	if err != nil {
		return nil
	}
	r, err := h.reqSvc.Get(ctx, caller, rec.RequestID)
	if err != nil {
		return nil
	}
	return r
}

// GetRequest godoc
// @ID          getRequest
// @Summary     Fetch a single request
// @Tags        Requests
// @Produce     json
// @Param       id  path  int  true  "Request ID"
// @Success     200  {object}  domain.EmojiRequest
// @Failure     404  {object}  handlers.ErrorResponse "Request not found"
// @Router      /requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a positive integer")
		return
	}

	r, err := h.reqSvc.Get(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "request not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, r)
}

// ListRequests godoc
// @ID          listRequests
// @Summary     List requests (paginated)
// @Description Returns a page of the caller's requests. Admins may pass all=1 to enumerate every user's rows. Supports weak ETag via If-None-Match.
// @Tags        Requests
// @Produce     json
// @Param       page       query  int   false "Page number"    minimum(1) default(1)
// @Param       page_size  query  int   false "Items per page" minimum(1) maximum(100) default(20)
// @Param       all        query  bool  false "Enumerate all users (admin only)"
// @Success     200  {object} handlers.ListRequestsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     403  {object} handlers.ErrorResponse "Admin capability required"
// @Router      /requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	ctx := c.Request.Context()
	caller := middleware.IdentityFrom(c)
	page, pageSize := clampPagination(c)
	all := sysutil.IsTruthy(c.Query("all"))

	// ETag pre-check (best effort).
	scope := caller.UserID
	if all && caller.Admin() {
		scope = 0
	}
	if count, maxTS, err := repo.RequestsStats(ctx, h.db, scope); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"requests:%d:%d:%d"`, scope, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.reqSvc.ListPage(ctx, caller, page, pageSize, all)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "admin capability required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListRequestsResponse{
		Requests: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// RecentEmojis godoc
// @ID          recentEmojis
// @Summary     Recently explained emojis
// @Tags        Requests
// @Produce     json
// @Param       limit  query  int  false  "Maximum entries"  minimum(1) maximum(50) default(10)
// @Success     200  {object}  handlers.RecentEmojisResponse
// @Router      /emojis/recent [get]
func (h *Handlers) RecentEmojis(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 10)

	items, err := h.reqSvc.Recent(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	out := RecentEmojisResponse{Emojis: make([]RecentEmoji, 0, len(items))}
	for _, r := range items {
		out.Emojis = append(out.Emojis, RecentEmoji{Emoji: r.Emoji, Explanation: r.Explanation})
	}
	ok(c, http.StatusOK, out)
}
