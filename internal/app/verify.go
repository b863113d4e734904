package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
	"github.com/meritcollege/payment-service/internal/store"
	"github.com/meritcollege/payment-service/pkg/flutterwave"
)

// VerifyPayment is the reconciliation pipeline for one gateway transaction.
// The sequence is fixed: replay guard, gateway verification, fee resolution,
// integrity validation, then the atomic entitlement-plus-ledger commit. No
// entitlement is written before validation passes, and no success is
// reported before the ledger row is committed. Security-relevant failures
// (replay, amount mismatch, ownership mismatch) leave a rejected ledger row
// and an audit event; transient upstream failures leave nothing.
func (s *Service) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (*domain.VerifyPaymentResult, error) {
	reference := strings.TrimSpace(req.TransactionID)
	if reference == "" || req.AccountID == uuid.Nil || !req.Purpose.Valid() {
		return nil, ErrInvalidRequest
	}

	// Replay guard. A store failure here must fail closed: proceeding as if
	// no replay existed would let an attacker bypass the one dedupe anchor.
	used, err := s.repo.HasSuccessfulLedgerEntry(ctx, reference)
	if err != nil {
		log.Printf("level=error component=service flow=verify_payment msg=\"replay guard unavailable\" reference=%s err=%v", reference, err)
		return nil, ErrPersistenceUnavailable
	}
	if used {
		log.Printf("level=warn component=service flow=verify_payment msg=\"replay attempt blocked\" account_id=%s reference=%s", req.AccountID, reference)
		s.recordRejection(ctx, req, reference, nil, ErrReplayDetected)
		return nil, ErrReplayDetected
	}

	// Gateway verification. The gateway's answer is the only trusted source
	// for amount, currency and status; nothing the client claims is used.
	result, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, mapGatewayError(reference, err)
	}
	if result.PaymentStatus != flutterwave.StatusSuccessful {
		log.Printf("level=info component=service flow=verify_payment msg=\"gateway reports non-successful payment\" reference=%s payment_status=%s", reference, result.PaymentStatus)
		return nil, ErrGatewayDeclined
	}

	record := &domain.GatewayRecord{
		Status:                result.PaymentStatus,
		Amount:                result.Amount,
		Currency:              result.Currency,
		Reference:             result.FlwRef,
		CounterpartyReference: result.TxRef,
		GatewayTransactionID:  result.TransactionID,
	}

	account, err := s.repo.FindAccountByID(ctx, req.AccountID)
	if err != nil {
		if err == store.ErrAccountNotFound {
			return nil, err
		}
		return nil, ErrPersistenceUnavailable
	}

	// The account's registered program wins over the claimed one.
	programType := account.ProgramType
	if programType == domain.ProgramNone {
		programType = req.ProgramType
	}

	schedule, err := s.repo.LoadFeeSchedule(ctx)
	if err != nil {
		return nil, ErrPersistenceUnavailable
	}
	expected := ExpectedAmount(schedule, req.Purpose, programType)

	if err := s.validateIntegrity(record, expected, account.ID); err != nil {
		if IsFraudClass(err) {
			log.Printf("level=warn component=service flow=verify_payment msg=\"fraud attempt rejected\" account_id=%s reference=%s err=%v", account.ID, reference, err)
			s.recordRejection(ctx, req, reference, record, err)
		} else {
			log.Printf("level=info component=service flow=verify_payment msg=\"verification rejected\" account_id=%s reference=%s err=%v", account.ID, reference, err)
		}
		return nil, err
	}

	entry := s.newLedgerEntry(req, reference, record, domain.OutcomeSuccessful, nil)

	switch req.Purpose {
	case domain.PurposeProgramFee:
		err = s.repo.ApplyProgramFeePayment(ctx, account.ID, entry)
	case domain.PurposeSubscriptionPurchase:
		now := time.Now().UTC()
		sub := &domain.Subscription{
			ID:         uuid.New(),
			AccountID:  account.ID,
			PlanType:   domain.PlanCBTPractice,
			AmountPaid: record.Amount,
			StartsAt:   now,
			ExpiresAt:  now.AddDate(0, 0, s.cfg.SubscriptionValidityDays),
			Reference:  reference,
		}
		err = s.repo.ApplySubscriptionPurchase(ctx, sub, entry)
	}
	if err != nil {
		if err == store.ErrDuplicateReference {
			// A concurrent request won the race to the ledger; the unique
			// constraint is the serialization point, so this is a replay.
			log.Printf("level=warn component=service flow=verify_payment msg=\"concurrent replay blocked by ledger constraint\" account_id=%s reference=%s", account.ID, reference)
			s.recordRejection(ctx, req, reference, record, ErrReplayDetected)
			return nil, ErrReplayDetected
		}
		log.Printf("level=error component=service flow=verify_payment msg=\"entitlement commit failed\" account_id=%s reference=%s err=%v", account.ID, reference, err)
		return nil, ErrPersistenceUnavailable
	}

	log.Printf("level=info component=service flow=verify_payment msg=\"payment verified\" account_id=%s reference=%s purpose=%s amount=%d", account.ID, reference, req.Purpose, record.Amount)
	s.publishEvent(ctx, domain.EventPaymentVerified, domain.PaymentVerifiedEvent{
		AccountID: account.ID,
		Amount:    record.Amount,
		Currency:  record.Currency,
		Reference: reference,
		Purpose:   req.Purpose,
		Timestamp: time.Now().UTC(),
	})

	return &domain.VerifyPaymentResult{
		Success: true,
		Message: "Payment verified successfully",
		Amount:  record.Amount,
		Purpose: req.Purpose,
	}, nil
}

// mapGatewayError folds client errors into the taxonomy: anything the
// gateway explicitly answered is terminal, anything else is transient and
// safe to retry because the replay guard keeps retries idempotent.
func mapGatewayError(reference string, err error) error {
	var gatewayErr *flutterwave.ErrorResponse
	if errors.Is(err, flutterwave.ErrTransactionNotFound) || errors.As(err, &gatewayErr) {
		log.Printf("level=info component=service flow=verify_payment msg=\"gateway declined verification\" reference=%s err=%v", reference, err)
		return ErrGatewayDeclined
	}
	log.Printf("level=warn component=service flow=verify_payment msg=\"gateway unreachable\" reference=%s err=%v", reference, err)
	return ErrGatewayUnavailable
}

// newLedgerEntry builds a ledger entry for the current attempt. The gateway
// record may be nil when the attempt never reached the gateway (replay
// detected up front).
func (s *Service) newLedgerEntry(req domain.VerifyPaymentRequest, reference string, record *domain.GatewayRecord, outcome string, failureReason *string) *domain.LedgerEntry {
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		AccountID:     req.AccountID,
		Currency:      s.cfg.OperatingCurrency,
		Reference:     reference,
		Purpose:       req.Purpose,
		Outcome:       outcome,
		Channel:       domain.ChannelFlutterwave,
		FailureReason: failureReason,
	}
	if record != nil {
		entry.Amount = record.Amount
		entry.Currency = record.Currency
		entry.GatewayTransactionID = &record.GatewayTransactionID
		entry.GatewayReference = &record.Reference
	}
	return entry
}

// recordRejection appends a rejected ledger row and publishes a fraud audit
// event. Both are best-effort side effects of an already-failed attempt.
func (s *Service) recordRejection(ctx context.Context, req domain.VerifyPaymentRequest, reference string, record *domain.GatewayRecord, cause error) {
	detail := cause.Error()
	if recErr := s.repo.RecordRejectedAttempt(ctx, s.newLedgerEntry(req, reference, record, domain.OutcomeRejected, &detail)); recErr != nil {
		log.Printf("level=error component=service flow=verify_payment msg=\"failed to record rejected attempt\" reference=%s err=%v", reference, recErr)
	}
	s.publishEvent(ctx, domain.EventFraudDetected, domain.FraudDetectedEvent{
		AccountID: req.AccountID,
		Reference: reference,
		Reason:    rejectionReason(cause),
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

func rejectionReason(err error) string {
	var amountErr *AmountMismatchError
	var ownerErr *OwnershipMismatchError
	switch {
	case errors.Is(err, ErrReplayDetected):
		return "replay_detected"
	case errors.As(err, &amountErr):
		return "amount_mismatch"
	case errors.As(err, &ownerErr):
		return "ownership_mismatch"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	default:
		return "rejected"
	}
}
