/**
 * @description
 * This file contains the HTTP handlers for the payment-service's API
 * endpoints. Handlers parse incoming requests, enforce the token-to-account
 * binding, call the application service, and map the error taxonomy onto
 * HTTP statuses. Fraud-class rejections deliberately return a generic
 * message so the endpoint cannot be used to probe internal thresholds.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/app"
	"github.com/meritcollege/payment-service/internal/domain"
	"github.com/meritcollege/payment-service/internal/store"
)

const verifyRateLimitScope = "verify_payment"

// PaymentHandlers holds the application service and rate limiter that
// handlers will use.
type PaymentHandlers struct {
	service         *app.Service
	limiter         app.RateLimiter
	verifyPerMinute int
}

// NewPaymentHandlers creates a new instance of PaymentHandlers. A nil
// limiter disables throttling.
func NewPaymentHandlers(service *app.Service, limiter app.RateLimiter, verifyPerMinute int) *PaymentHandlers {
	return &PaymentHandlers{
		service:         service,
		limiter:         limiter,
		verifyPerMinute: verifyPerMinute,
	}
}

// requestAccountID parses and authorizes the account the caller is acting
// on: the token subject must match unless the caller is an administrator.
func (h *PaymentHandlers) requestAccountID(w http.ResponseWriter, r *http.Request, claimed uuid.UUID) bool {
	subject, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return false
	}
	role, _ := GetAccountRole(r.Context())
	if role == RoleAdmin || subject == claimed.String() {
		return true
	}
	h.writeError(w, http.StatusForbidden, "Access denied for this account")
	return false
}

// VerifyPaymentHandler handles POST /verify: the inbound claim that a
// gateway transaction paid for something.
func (h *PaymentHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.requestAccountID(w, r, req.AccountID) {
		return
	}

	if h.limiter != nil && h.verifyPerMinute > 0 {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), verifyRateLimitScope, req.AccountID.String(), h.verifyPerMinute, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.verifyPerMinute {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many verification attempts. Please wait and try again.")
			return
		}
	}

	result, err := h.service.VerifyPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// SubmitManualPaymentHandler handles POST /manual: an offline bank-transfer
// claim destined for the administrator review queue.
func (h *PaymentHandlers) SubmitManualPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Purpose == "" {
		req.Purpose = domain.PurposeProgramFee
	}
	if !h.requestAccountID(w, r, req.AccountID) {
		return
	}

	entry, err := h.service.SubmitManualPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":  "Manual payment submitted for review",
		"entry_id": entry.ID,
	})
}

// GetFeesHandler handles GET /fees: the public fee schedule, in kobo.
func (h *PaymentHandlers) GetFeesHandler(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.GetFeeSchedule(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"fee schedule load failed\" err=%v", err)
		h.writeError(w, http.StatusServiceUnavailable, "Fee schedule unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{
		"fee_jamb":             schedule.JAMBFee,
		"fee_alevel":           schedule.ALevelFee,
		"fee_olevel":           schedule.OLevelFee,
		"fee_cbt_subscription": schedule.SubscriptionFee,
	})
}

// PaymentHistoryHandler handles GET /history/{accountID}.
func (h *PaymentHandlers) PaymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}
	if !h.requestAccountID(w, r, accountID) {
		return
	}

	entries, err := h.service.GetPaymentHistory(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// SubscriptionStatusHandler handles GET /subscription/{accountID}.
func (h *PaymentHandlers) SubscriptionStatusHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}
	if !h.requestAccountID(w, r, accountID) {
		return
	}

	status, err := h.service.GetSubscriptionStatus(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// ListPendingManualHandler handles GET /manual/pending (admin only).
func (h *PaymentHandlers) ListPendingManualHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListPendingManualPayments(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

type manualReviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// ReviewManualPaymentHandler handles POST /manual/{entryID}/review (admin only).
func (h *PaymentHandlers) ReviewManualPaymentHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid entry id")
		return
	}
	subject, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	reviewerID, err := uuid.Parse(subject)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid reviewer identity")
		return
	}

	var req manualReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.ReviewManualPayment(r.Context(), entryID, reviewerID, req.Approve, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Manual payment reviewed",
		"entry":   entry,
	})
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Fraud-class rejections share one generic message; the full detail stays in
// server-side logs and the audit trail.
func (h *PaymentHandlers) writeServiceError(w http.ResponseWriter, err error) {
	var amountErr *app.AmountMismatchError
	var ownerErr *app.OwnershipMismatchError

	switch {
	case errors.Is(err, app.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "Missing or invalid transaction details")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrManualEntryNotFound):
		h.writeError(w, http.StatusNotFound, "Manual payment entry not found or already reviewed")
	case errors.Is(err, app.ErrReplayDetected):
		h.writeError(w, http.StatusConflict, "This transaction has already been used")
	case errors.Is(err, app.ErrGatewayDeclined):
		h.writeError(w, http.StatusBadRequest, "Payment failed or was declined")
	case errors.Is(err, app.ErrCurrencyMismatch),
		errors.As(err, &amountErr),
		errors.As(err, &ownerErr):
		h.writeError(w, http.StatusBadRequest, "Payment could not be confirmed for this account")
	case errors.Is(err, app.ErrGatewayUnavailable):
		h.writeError(w, http.StatusBadGateway, "Payment gateway is unreachable. Please try again shortly")
	case errors.Is(err, app.ErrPersistenceUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Payment records are temporarily unavailable")
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
