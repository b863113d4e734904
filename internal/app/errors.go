package app

import (
	"errors"
	"fmt"
)

// Verification error taxonomy. Every failure the orchestrator can produce is
// one of these; raw upstream errors never leak past the service layer.
var (
	// ErrReplayDetected means the reference has already been recorded as a
	// successful payment.
	ErrReplayDetected = errors.New("transaction reference already used")

	// ErrGatewayUnavailable is transient: the gateway could not be reached
	// before the deadline. The caller may retry with the same reference.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayDeclined is terminal: the gateway knows the transaction and
	// reports it as not successful.
	ErrGatewayDeclined = errors.New("payment failed or declined by gateway")

	// ErrCurrencyMismatch means the payment was made in a currency other
	// than the configured operating currency.
	ErrCurrencyMismatch = errors.New("payment currency does not match operating currency")

	// ErrPersistenceUnavailable means a required store operation failed.
	// During the replay check this must fail closed.
	ErrPersistenceUnavailable = errors.New("payment store unavailable")

	// ErrInvalidRequest covers malformed verification requests (missing
	// transaction id, unknown purpose).
	ErrInvalidRequest = errors.New("invalid verification request")
)

// AmountMismatchError is returned when the verified amount falls below the
// tolerated minimum. It carries both figures for the audit trail; handlers
// must not echo them to the caller.
type AmountMismatchError struct {
	Expected int64 // kobo
	Received int64 // kobo
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %d, received %d", e.Expected, e.Received)
}

// OwnershipMismatchError is returned when the gateway's counterparty
// reference does not bind to the claiming account.
type OwnershipMismatchError struct {
	AccountID             string
	CounterpartyReference string
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("ownership mismatch: reference %q does not bind to account %s", e.CounterpartyReference, e.AccountID)
}

// IsFraudClass reports whether err is one of the security-relevant
// rejections that must be ledgered and audit-logged: replay, amount
// mismatch, ownership mismatch.
func IsFraudClass(err error) bool {
	var amountErr *AmountMismatchError
	var ownerErr *OwnershipMismatchError
	return errors.Is(err, ErrReplayDetected) || errors.As(err, &amountErr) || errors.As(err, &ownerErr)
}
