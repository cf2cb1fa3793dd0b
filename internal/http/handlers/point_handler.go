// Point HTTP handlers.
//
// This file exposes the REST endpoints for user point balances:
//   - GET   /point/{id}            (current balance)
//   - GET   /point/{id}/histories  (transaction history)
//   - PATCH /point/{id}/charge     (add points)
//   - PATCH /point/{id}/use        (deduct points)
//
// Handlers are transport-thin: they parse and validate input, delegate to
// the point service, and translate service errors into HTTP results. All
// concurrency control lives behind the service; the adapter never inspects
// or holds locks.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-point-backend/internal/domain"
	"github.com/tbourn/go-point-backend/internal/services"
)

// PointService defines the point operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation.
type PointService interface {
	// GetBalance returns the user's current balance (zero default).
	GetBalance(ctx context.Context, userID int64) (domain.UserPoint, error)
	// GetHistory returns the user's transactions in insertion order.
	GetHistory(ctx context.Context, userID int64) ([]domain.PointHistory, error)
	// Charge adds amount points and returns the updated balance.
	Charge(ctx context.Context, userID, amount int64) (domain.UserPoint, error)
	// Use deducts amount points and returns the updated balance.
	Use(ctx context.Context, userID, amount int64) (domain.UserPoint, error)
}

// Handlers groups the HTTP endpoints for point balances and history.
type Handlers struct {
	svc PointService
}

// New constructs a Handlers instance bound to the given point service.
func New(svc PointService) *Handlers {
	return &Handlers{svc: svc}
}

// AmountRequest is the JSON payload for charge and use operations.
// The amount must be a positive integer; the service is authoritative for
// that check so that validation and mutation share one critical section.
type AmountRequest struct {
	Amount int64 `json:"amount" example:"500"`
}

// userIDParam parses the numeric user id path parameter. User ids are
// non-negative integers.
func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

// GetPoint returns the user's current balance. Users never charged yield a
// zero-point record rather than 404.
func (h *Handlers) GetPoint(c *gin.Context) {
	id, okID := userIDParam(c)
	if !okID {
		return
	}

	up, err := h.svc.GetBalance(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, up)
}

// GetPointHistories returns the user's full transaction history in
// chronological order; an empty array when there is none.
func (h *Handlers) GetPointHistories(c *gin.Context) {
	id, okID := userIDParam(c)
	if !okID {
		return
	}

	entries, err := h.svc.GetHistory(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}

// ChargePoint adds points to the user's balance and returns the updated
// record.
func (h *Handlers) ChargePoint(c *gin.Context) {
	id, okID := userIDParam(c)
	if !okID {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object with an integer amount")
		return
	}

	up, err := h.svc.Charge(c.Request.Context(), id, req.Amount)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, up)
}

// UsePoint deducts points from the user's balance and returns the updated
// record.
func (h *Handlers) UsePoint(c *gin.Context) {
	id, okID := userIDParam(c)
	if !okID {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object with an integer amount")
		return
	}

	up, err := h.svc.Use(c.Request.Context(), id, req.Amount)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, up)
}

// failFromService maps the service error taxonomy onto HTTP statuses:
// invalid amount → 400, lock timeout → 408, insufficient balance → 409,
// everything else (store failures included) → 500.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, services.ErrInvalidAmount.Error())
	case errors.Is(err, services.ErrLockTimeout):
		fail(c, http.StatusRequestTimeout, ErrCodeLockTimeout, services.ErrLockTimeout.Error())
	case errors.Is(err, services.ErrInsufficientBalance):
		fail(c, http.StatusConflict, ErrCodeInsufficientBalance, services.ErrInsufficientBalance.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
