package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for audit events published to the payment events exchange.
// The activity-log service consumes these; verification never depends on a
// publish succeeding.
const (
	EventPaymentVerified = "payment.verified"
	EventFraudDetected   = "payment.fraud_detected"
	EventManualSubmitted = "payment.manual_submitted"
	EventManualReviewed  = "payment.manual_reviewed"
)

// PaymentVerifiedEvent is published after a verification reaches the ledger.
type PaymentVerifiedEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	Purpose   Purpose   `json:"purpose"`
	Timestamp time.Time `json:"timestamp"`
}

// FraudDetectedEvent is published for security-relevant rejections: replay,
// amount mismatch and ownership mismatch. Detail carries the full internal
// reason; it is never echoed to the caller.
type FraudDetectedEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Reference string    `json:"reference"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// ManualPaymentEvent is published when an offline payment is submitted for
// review or when an administrator resolves one.
type ManualPaymentEvent struct {
	EntryID    uuid.UUID  `json:"entry_id"`
	AccountID  uuid.UUID  `json:"account_id"`
	Reference  string     `json:"reference"`
	Outcome    string     `json:"outcome"`
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
