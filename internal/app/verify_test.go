package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
	"github.com/meritcollege/payment-service/internal/store"
	"github.com/meritcollege/payment-service/pkg/flutterwave"
)

type verifyRepoStub struct {
	store.Repository

	account        *domain.Account
	schedule       *domain.FeeSchedule
	hasSuccessful  bool
	replayCheckErr error
	applyErr       error

	appliedEntry    *domain.LedgerEntry
	appliedSub      *domain.Subscription
	rejectedEntries []*domain.LedgerEntry
}

func (s *verifyRepoStub) HasSuccessfulLedgerEntry(ctx context.Context, reference string) (bool, error) {
	return s.hasSuccessful, s.replayCheckErr
}

func (s *verifyRepoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if s.account == nil || s.account.ID != accountID {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *verifyRepoStub) LoadFeeSchedule(ctx context.Context) (*domain.FeeSchedule, error) {
	return s.schedule, nil
}

func (s *verifyRepoStub) ApplyProgramFeePayment(ctx context.Context, accountID uuid.UUID, entry *domain.LedgerEntry) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.appliedEntry = entry
	return nil
}

func (s *verifyRepoStub) ApplySubscriptionPurchase(ctx context.Context, sub *domain.Subscription, entry *domain.LedgerEntry) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.appliedSub = sub
	s.appliedEntry = entry
	return nil
}

func (s *verifyRepoStub) RecordRejectedAttempt(ctx context.Context, entry *domain.LedgerEntry) error {
	s.rejectedEntries = append(s.rejectedEntries, entry)
	return nil
}

type gatewayStub struct {
	result *flutterwave.VerificationResult
	err    error
	called bool
}

func (g *gatewayStub) VerifyTransaction(ctx context.Context, transactionID string) (*flutterwave.VerificationResult, error) {
	g.called = true
	return g.result, g.err
}

func newVerifyFixture(programType domain.ProgramType) (*verifyRepoStub, *gatewayStub, domain.VerifyPaymentRequest) {
	accountID := uuid.New()
	repo := &verifyRepoStub{
		account: &domain.Account{
			ID:            accountID,
			Email:         "ada@example.com",
			FullName:      "Ada Obi",
			ProgramType:   programType,
			PaymentStatus: domain.PaymentStatusUnpaid,
		},
		schedule: &domain.FeeSchedule{
			JAMBFee:         500000,
			ALevelFee:       750000,
			OLevelFee:       400000,
			SubscriptionFee: 150000,
		},
	}
	gateway := &gatewayStub{
		result: &flutterwave.VerificationResult{
			PaymentStatus: flutterwave.StatusSuccessful,
			Amount:        500000,
			Currency:      "NGN",
			TxRef:         fmt.Sprintf("MCAS-%s-1724932800", accountID),
			FlwRef:        "FLW-MOCK-abc123",
			TransactionID: "8412345",
		},
	}
	req := domain.VerifyPaymentRequest{
		TransactionID: "8412345",
		AccountID:     accountID,
		Purpose:       domain.PurposeProgramFee,
	}
	return repo, gateway, req
}

func TestVerifyPayment_SuccessfulProgramFee(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	service := NewService(repo, gateway, nil, Config{})

	result, err := service.VerifyPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !result.Success {
		t.Fatal("expected a successful result")
	}
	if result.Amount != 500000 {
		t.Fatalf("expected verified amount 500000, got %d", result.Amount)
	}
	if repo.appliedEntry == nil {
		t.Fatal("expected a ledger entry to be committed")
	}
	if repo.appliedEntry.Outcome != domain.OutcomeSuccessful {
		t.Fatalf("expected outcome %q, got %q", domain.OutcomeSuccessful, repo.appliedEntry.Outcome)
	}
	if repo.appliedEntry.Reference != req.TransactionID {
		t.Fatalf("expected ledger reference %q, got %q", req.TransactionID, repo.appliedEntry.Reference)
	}
	if repo.appliedEntry.Channel != domain.ChannelFlutterwave {
		t.Fatalf("expected flutterwave channel, got %q", repo.appliedEntry.Channel)
	}
	if repo.appliedEntry.GatewayReference == nil || *repo.appliedEntry.GatewayReference != "FLW-MOCK-abc123" {
		t.Fatal("expected the gateway reference to be preserved on the ledger entry")
	}
	if len(repo.rejectedEntries) != 0 {
		t.Fatalf("expected no rejected entries, got %d", len(repo.rejectedEntries))
	}
}

func TestVerifyPayment_ReplayRejected(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	repo.hasSuccessful = true
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
	if gateway.called {
		t.Fatal("expected the gateway to be skipped for a replayed reference")
	}
	if repo.appliedEntry != nil {
		t.Fatal("expected no entitlement to be applied")
	}
	if len(repo.rejectedEntries) != 1 {
		t.Fatalf("expected one rejected audit entry, got %d", len(repo.rejectedEntries))
	}
	if repo.rejectedEntries[0].Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %q", repo.rejectedEntries[0].Outcome)
	}
}

func TestVerifyPayment_ReplayGuardFailsClosed(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	repo.replayCheckErr = errors.New("connection refused")
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if gateway.called {
		t.Fatal("expected the gateway to be skipped when the replay guard cannot answer")
	}
	if repo.appliedEntry != nil || len(repo.rejectedEntries) != 0 {
		t.Fatal("expected no writes when the replay guard is unavailable")
	}
}

func TestVerifyPayment_GatewayDeclined(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	gateway.result.PaymentStatus = flutterwave.StatusFailed
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrGatewayDeclined) {
		t.Fatalf("expected ErrGatewayDeclined, got %v", err)
	}
	if repo.appliedEntry != nil {
		t.Fatal("expected no entitlement for a declined payment")
	}
	if len(repo.rejectedEntries) != 0 {
		t.Fatal("declined payments are not fraud; expected no rejected audit entry")
	}
}

func TestVerifyPayment_GatewayUnreachable(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	gateway.result = nil
	gateway.err = errors.New("dial tcp: i/o timeout")
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if repo.appliedEntry != nil || len(repo.rejectedEntries) != 0 {
		t.Fatal("expected no writes for a transient gateway failure")
	}
}

func TestVerifyPayment_GatewayUnknownReferenceIsDeclined(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	gateway.result = nil
	gateway.err = flutterwave.ErrTransactionNotFound
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrGatewayDeclined) {
		t.Fatalf("expected ErrGatewayDeclined, got %v", err)
	}
}

func TestVerifyPayment_AmountMismatchLedgersRejection(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	gateway.result.Amount = 499999
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	var amountErr *AmountMismatchError
	if !errors.As(err, &amountErr) {
		t.Fatalf("expected AmountMismatchError, got %v", err)
	}
	if amountErr.Expected != 500000 || amountErr.Received != 499999 {
		t.Fatalf("expected figures 500000/499999, got %d/%d", amountErr.Expected, amountErr.Received)
	}
	if repo.appliedEntry != nil {
		t.Fatal("expected no entitlement for an underpaid transaction")
	}
	if len(repo.rejectedEntries) != 1 {
		t.Fatalf("expected one rejected audit entry, got %d", len(repo.rejectedEntries))
	}
	if repo.rejectedEntries[0].FailureReason == nil {
		t.Fatal("expected the rejected entry to carry a failure reason")
	}
}

func TestVerifyPayment_OwnershipMismatchLedgersRejection(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	gateway.result.TxRef = fmt.Sprintf("MCAS-%s-1724932800", uuid.New())
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	var ownerErr *OwnershipMismatchError
	if !errors.As(err, &ownerErr) {
		t.Fatalf("expected OwnershipMismatchError, got %v", err)
	}
	if repo.appliedEntry != nil {
		t.Fatal("expected no entitlement when the receipt belongs to another account")
	}
	if len(repo.rejectedEntries) != 1 {
		t.Fatalf("expected one rejected audit entry, got %d", len(repo.rejectedEntries))
	}
}

func TestVerifyPayment_CurrencyMismatch(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	gateway.result.Currency = "USD"
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if repo.appliedEntry != nil {
		t.Fatal("expected no entitlement for a foreign-currency payment")
	}
}

func TestVerifyPayment_ConcurrentDuplicateTreatedAsReplay(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	repo.applyErr = store.ErrDuplicateReference
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
	if len(repo.rejectedEntries) != 1 {
		t.Fatalf("expected one rejected audit entry, got %d", len(repo.rejectedEntries))
	}
}

func TestVerifyPayment_SubscriptionPurchase(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	req.Purpose = domain.PurposeSubscriptionPurchase
	gateway.result.Amount = 150000
	service := NewService(repo, gateway, nil, Config{SubscriptionValidityDays: 30})

	result, err := service.VerifyPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !result.Success {
		t.Fatal("expected a successful result")
	}
	if repo.appliedSub == nil {
		t.Fatal("expected a subscription to be created")
	}
	if repo.appliedSub.PlanType != domain.PlanCBTPractice {
		t.Fatalf("expected plan %q, got %q", domain.PlanCBTPractice, repo.appliedSub.PlanType)
	}
	if repo.appliedSub.Reference != req.TransactionID {
		t.Fatalf("expected subscription reference %q, got %q", req.TransactionID, repo.appliedSub.Reference)
	}
	wantExpiry := repo.appliedSub.StartsAt.AddDate(0, 0, 30)
	if !repo.appliedSub.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %s, got %s", wantExpiry, repo.appliedSub.ExpiresAt)
	}
	if time.Until(repo.appliedSub.ExpiresAt) <= 0 {
		t.Fatal("expected a fresh subscription to expire in the future")
	}
}

func TestVerifyPayment_UnregisteredProgramFallsBackToClaim(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramNone)
	req.ProgramType = domain.ProgramALevel
	gateway.result.Amount = 750000
	service := NewService(repo, gateway, nil, Config{})

	result, err := service.VerifyPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Amount != 750000 {
		t.Fatalf("expected the A-Level fee to be applied, got %d", result.Amount)
	}
}

func TestVerifyPayment_InvalidRequests(t *testing.T) {
	repo, gateway, _ := newVerifyFixture(domain.ProgramJAMB)
	service := NewService(repo, gateway, nil, Config{})

	tests := []struct {
		name string
		req  domain.VerifyPaymentRequest
	}{
		{
			name: "missing transaction id",
			req:  domain.VerifyPaymentRequest{AccountID: uuid.New(), Purpose: domain.PurposeProgramFee},
		},
		{
			name: "blank transaction id",
			req:  domain.VerifyPaymentRequest{TransactionID: "   ", AccountID: uuid.New(), Purpose: domain.PurposeProgramFee},
		},
		{
			name: "missing account id",
			req:  domain.VerifyPaymentRequest{TransactionID: "8412345", Purpose: domain.PurposeProgramFee},
		},
		{
			name: "unknown purpose",
			req:  domain.VerifyPaymentRequest{TransactionID: "8412345", AccountID: uuid.New(), Purpose: "donation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.VerifyPayment(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestVerifyPayment_AccountNotFound(t *testing.T) {
	repo, gateway, req := newVerifyFixture(domain.ProgramJAMB)
	repo.account = nil
	service := NewService(repo, gateway, nil, Config{})

	_, err := service.VerifyPayment(context.Background(), req)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
