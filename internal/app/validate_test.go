package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
)

func newGatewayRecord(accountID uuid.UUID, amount int64, currency string) *domain.GatewayRecord {
	return &domain.GatewayRecord{
		Status:                "successful",
		Amount:                amount,
		Currency:              currency,
		Reference:             "FLW-MOCK-abc123",
		CounterpartyReference: fmt.Sprintf("MCAS-%s-1724932800", accountID),
		GatewayTransactionID:  "8412345",
	}
}

func TestValidateIntegrity_AmountBoundary(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name      string
		tolerance float64
		expected  int64
		amount    int64
		wantPass  bool
	}{
		{
			name:      "exact amount with zero tolerance passes",
			tolerance: 0,
			expected:  100000,
			amount:    100000,
			wantPass:  true,
		},
		{
			name:      "one kobo short with zero tolerance fails",
			tolerance: 0,
			expected:  100000,
			amount:    99999,
			wantPass:  false,
		},
		{
			name:      "overpayment passes",
			tolerance: 0,
			expected:  100000,
			amount:    120000,
			wantPass:  true,
		},
		{
			name:      "amount at tolerated minimum passes",
			tolerance: 0.05,
			expected:  100000,
			amount:    95000,
			wantPass:  true,
		},
		{
			name:      "one kobo below tolerated minimum fails",
			tolerance: 0.05,
			expected:  100000,
			amount:    94999,
			wantPass:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(nil, nil, nil, Config{AmountTolerance: tt.tolerance})
			err := service.validateIntegrity(newGatewayRecord(accountID, tt.amount, "NGN"), tt.expected, accountID)

			var amountErr *AmountMismatchError
			if tt.wantPass && err != nil {
				t.Fatalf("expected amount to pass, got %v", err)
			}
			if !tt.wantPass && !errors.As(err, &amountErr) {
				t.Fatalf("expected AmountMismatchError, got %v", err)
			}
		})
	}
}

func TestValidateIntegrity_TruncationBoundary(t *testing.T) {
	// ceil(99999 * 0.95) = 95000, so 94999 must fail even though
	// floor(99999 * 0.95) would have let it through.
	accountID := uuid.New()
	service := NewService(nil, nil, nil, Config{AmountTolerance: 0.05})

	if err := service.validateIntegrity(newGatewayRecord(accountID, 95000, "NGN"), 99999, accountID); err != nil {
		t.Fatalf("expected 95000 to pass against expected 99999, got %v", err)
	}
	var amountErr *AmountMismatchError
	err := service.validateIntegrity(newGatewayRecord(accountID, 94999, "NGN"), 99999, accountID)
	if !errors.As(err, &amountErr) {
		t.Fatalf("expected AmountMismatchError for 94999 against expected 99999, got %v", err)
	}
}

func TestValidateIntegrity_CurrencyGate(t *testing.T) {
	accountID := uuid.New()
	service := NewService(nil, nil, nil, Config{})

	if err := service.validateIntegrity(newGatewayRecord(accountID, 100000, "ngn"), 100000, accountID); err != nil {
		t.Fatalf("expected currency comparison to ignore case, got %v", err)
	}
	if err := service.validateIntegrity(newGatewayRecord(accountID, 100000, "USD"), 100000, accountID); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestValidateIntegrity_OwnershipGate(t *testing.T) {
	accountID := uuid.New()
	service := NewService(nil, nil, nil, Config{})

	record := newGatewayRecord(accountID, 100000, "NGN")
	record.CounterpartyReference = fmt.Sprintf("MCAS-%s-1724932800", uuid.New())

	var ownerErr *OwnershipMismatchError
	err := service.validateIntegrity(record, 100000, accountID)
	if !errors.As(err, &ownerErr) {
		t.Fatalf("expected OwnershipMismatchError, got %v", err)
	}
	if ownerErr.AccountID != accountID.String() {
		t.Fatalf("expected the error to carry the claiming account, got %q", ownerErr.AccountID)
	}
}

func TestIsFraudClass(t *testing.T) {
	if !IsFraudClass(ErrReplayDetected) {
		t.Fatal("expected replay to be fraud class")
	}
	if !IsFraudClass(&AmountMismatchError{Expected: 1, Received: 0}) {
		t.Fatal("expected amount mismatch to be fraud class")
	}
	if !IsFraudClass(&OwnershipMismatchError{}) {
		t.Fatal("expected ownership mismatch to be fraud class")
	}
	if IsFraudClass(ErrCurrencyMismatch) {
		t.Fatal("currency mismatch is a rejection but not fraud class")
	}
	if IsFraudClass(ErrGatewayUnavailable) {
		t.Fatal("transient gateway failures are not fraud class")
	}
}
