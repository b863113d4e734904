package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
	"github.com/meritcollege/payment-service/internal/store"
)

type manualRepoStub struct {
	store.Repository

	account *domain.Account

	createdEntry *domain.LedgerEntry

	approveErr     error
	rejectedReason string
}

func (s *manualRepoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if s.account == nil || s.account.ID != accountID {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *manualRepoStub) CreateManualPaymentEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	s.createdEntry = entry
	return nil
}

func (s *manualRepoStub) ApproveManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID) (*domain.LedgerEntry, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return &domain.LedgerEntry{
		ID:         entryID,
		AccountID:  uuid.New(),
		Outcome:    domain.OutcomeSuccessful,
		ReviewedBy: &reviewerID,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *manualRepoStub) RejectManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID, reason string) (*domain.LedgerEntry, error) {
	s.rejectedReason = reason
	return &domain.LedgerEntry{
		ID:            entryID,
		AccountID:     uuid.New(),
		Outcome:       domain.OutcomeRejected,
		ReviewedBy:    &reviewerID,
		FailureReason: &reason,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func TestSubmitManualPayment(t *testing.T) {
	accountID := uuid.New()
	repo := &manualRepoStub{
		account: &domain.Account{
			ID:            accountID,
			PaymentStatus: domain.PaymentStatusUnpaid,
		},
	}
	service := NewService(repo, nil, nil, Config{})

	entry, err := service.SubmitManualPayment(context.Background(), domain.ManualPaymentRequest{
		AccountID: accountID,
		Reference: "BANK-TRF-20260831-001",
		Amount:    500000,
		Purpose:   domain.PurposeProgramFee,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entry.Outcome != domain.OutcomePendingManual {
		t.Fatalf("expected pending_manual outcome, got %q", entry.Outcome)
	}
	if entry.Channel != domain.ChannelManualTransfer {
		t.Fatalf("expected manual_transfer channel, got %q", entry.Channel)
	}
	if repo.createdEntry == nil {
		t.Fatal("expected the entry to be persisted")
	}
}

func TestSubmitManualPayment_RejectsInvalidRequests(t *testing.T) {
	accountID := uuid.New()
	repo := &manualRepoStub{
		account: &domain.Account{ID: accountID},
	}
	service := NewService(repo, nil, nil, Config{})

	tests := []struct {
		name string
		req  domain.ManualPaymentRequest
	}{
		{
			name: "missing reference",
			req:  domain.ManualPaymentRequest{AccountID: accountID, Purpose: domain.PurposeProgramFee},
		},
		{
			name: "missing account",
			req:  domain.ManualPaymentRequest{Reference: "BANK-TRF-1", Purpose: domain.PurposeProgramFee},
		},
		{
			name: "subscriptions have no manual path",
			req:  domain.ManualPaymentRequest{AccountID: accountID, Reference: "BANK-TRF-1", Purpose: domain.PurposeSubscriptionPurchase},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.SubmitManualPayment(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestReviewManualPayment_Approve(t *testing.T) {
	repo := &manualRepoStub{}
	service := NewService(repo, nil, nil, Config{})

	entry, err := service.ReviewManualPayment(context.Background(), uuid.New(), uuid.New(), true, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entry.Outcome != domain.OutcomeSuccessful {
		t.Fatalf("expected successful outcome, got %q", entry.Outcome)
	}
}

func TestReviewManualPayment_ApproveRacesVerifiedReference(t *testing.T) {
	// The reference was meanwhile settled through the gateway; the ledger
	// constraint rejects the promotion and the approval reads as a replay.
	repo := &manualRepoStub{approveErr: store.ErrDuplicateReference}
	service := NewService(repo, nil, nil, Config{})

	_, err := service.ReviewManualPayment(context.Background(), uuid.New(), uuid.New(), true, "")
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
}

func TestReviewManualPayment_ApproveUnknownEntry(t *testing.T) {
	repo := &manualRepoStub{approveErr: store.ErrManualEntryNotFound}
	service := NewService(repo, nil, nil, Config{})

	_, err := service.ReviewManualPayment(context.Background(), uuid.New(), uuid.New(), true, "")
	if !errors.Is(err, store.ErrManualEntryNotFound) {
		t.Fatalf("expected ErrManualEntryNotFound, got %v", err)
	}
}

func TestReviewManualPayment_RejectDefaultsReason(t *testing.T) {
	repo := &manualRepoStub{}
	service := NewService(repo, nil, nil, Config{})

	entry, err := service.ReviewManualPayment(context.Background(), uuid.New(), uuid.New(), false, "  ")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entry.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %q", entry.Outcome)
	}
	if repo.rejectedReason != "rejected by administrator" {
		t.Fatalf("expected the default rejection reason, got %q", repo.rejectedReason)
	}
}
