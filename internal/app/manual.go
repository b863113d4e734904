package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
	"github.com/meritcollege/payment-service/internal/store"
)

// SubmitManualPayment records an offline bank-transfer claim for the review
// queue. Nothing is verified here: the entry stays pending_manual until an
// administrator resolves it, and the account gains no entitlement from the
// submission itself.
func (s *Service) SubmitManualPayment(ctx context.Context, req domain.ManualPaymentRequest) (*domain.LedgerEntry, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" || req.AccountID == uuid.Nil {
		return nil, ErrInvalidRequest
	}
	if req.Purpose != domain.PurposeProgramFee {
		// Only the program fee has an administrative review path; timed
		// products go through gateway verification exclusively.
		return nil, ErrInvalidRequest
	}

	if _, err := s.repo.FindAccountByID(ctx, req.AccountID); err != nil {
		if err == store.ErrAccountNotFound {
			return nil, err
		}
		return nil, ErrPersistenceUnavailable
	}

	amount := req.Amount
	if amount < 0 {
		amount = 0
	}
	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		AccountID: req.AccountID,
		Amount:    amount,
		Currency:  s.cfg.OperatingCurrency,
		Reference: reference,
		Purpose:   req.Purpose,
		Outcome:   domain.OutcomePendingManual,
		Channel:   domain.ChannelManualTransfer,
	}
	if err := s.repo.CreateManualPaymentEntry(ctx, entry); err != nil {
		log.Printf("level=error component=service flow=manual_payment msg=\"failed to create manual entry\" account_id=%s reference=%s err=%v", req.AccountID, reference, err)
		return nil, ErrPersistenceUnavailable
	}

	log.Printf("level=info component=service flow=manual_payment msg=\"manual payment submitted for review\" account_id=%s reference=%s", req.AccountID, reference)
	s.publishEvent(ctx, domain.EventManualSubmitted, domain.ManualPaymentEvent{
		EntryID:   entry.ID,
		AccountID: entry.AccountID,
		Reference: entry.Reference,
		Outcome:   entry.Outcome,
		Timestamp: time.Now().UTC(),
	})
	return entry, nil
}

// ListPendingManualPayments returns the administrator review queue.
func (s *Service) ListPendingManualPayments(ctx context.Context) ([]domain.LedgerEntry, error) {
	return s.repo.ListPendingManualEntries(ctx)
}

// ReviewManualPayment resolves a pending manual entry. Approval promotes the
// entry to successful and grants the program-fee entitlement atomically; the
// ledger's successful-reference constraint still applies, so approving a
// reference that was meanwhile verified through the gateway is reported as a
// replay. Rejection releases the account back to unpaid.
func (s *Service) ReviewManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID, approve bool, reason string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	var err error
	if approve {
		entry, err = s.repo.ApproveManualPayment(ctx, entryID, reviewerID)
	} else {
		if strings.TrimSpace(reason) == "" {
			reason = "rejected by administrator"
		}
		entry, err = s.repo.RejectManualPayment(ctx, entryID, reviewerID, reason)
	}
	if err != nil {
		switch err {
		case store.ErrManualEntryNotFound:
			return nil, err
		case store.ErrDuplicateReference:
			log.Printf("level=warn component=service flow=manual_payment msg=\"approval blocked; reference already verified\" entry_id=%s reviewer_id=%s", entryID, reviewerID)
			return nil, ErrReplayDetected
		default:
			log.Printf("level=error component=service flow=manual_payment msg=\"manual review failed\" entry_id=%s reviewer_id=%s err=%v", entryID, reviewerID, err)
			return nil, ErrPersistenceUnavailable
		}
	}

	log.Printf("level=info component=service flow=manual_payment msg=\"manual payment reviewed\" entry_id=%s reviewer_id=%s outcome=%s", entry.ID, reviewerID, entry.Outcome)
	s.publishEvent(ctx, domain.EventManualReviewed, domain.ManualPaymentEvent{
		EntryID:    entry.ID,
		AccountID:  entry.AccountID,
		Reference:  entry.Reference,
		Outcome:    entry.Outcome,
		ReviewedBy: &reviewerID,
		Timestamp:  time.Now().UTC(),
	})
	return entry, nil
}
