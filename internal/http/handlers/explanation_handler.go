// Explanation cache HTTP handlers (administrative).
//
//   - GET /explanations       (enumerate cache rows, paginated)
//   - GET /explanations/{id}  (fetch one cache row)
//
// Regular users only ever see cached text through their own requests;
// these routes are gated on the ADMIN capability by the router.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/http/middleware"
	"github.com/tbourn/go-emoji-backend/internal/services"
)

// ListExplanationsResponse wraps a page of cache rows and pagination info.
type ListExplanationsResponse struct {
	Explanations []domain.EmojiExplanation `json:"explanations"`
	Pagination   Pagination                `json:"pagination"`
}

// ListExplanations returns a page of cache rows.
func (h *Handlers) ListExplanations(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.expSvc.ListPage(c.Request.Context(), middleware.IdentityFrom(c), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "admin capability required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListExplanationsResponse{
		Explanations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetExplanation returns a single cache row by id.
func (h *Handlers) GetExplanation(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "explanation id must be a positive integer")
		return
	}

	e, err := h.expSvc.Get(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "admin capability required")
		case errors.Is(err, services.ErrExplanationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "explanation not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, e)
}
