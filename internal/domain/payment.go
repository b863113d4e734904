package domain

import (
	"time"

	"github.com/google/uuid"
)

// Purpose is the product or service being paid for. It determines which fee
// applies and which entitlement update runs after verification.
type Purpose string

const (
	PurposeProgramFee           Purpose = "program_fee"
	PurposeSubscriptionPurchase Purpose = "subscription_purchase"
)

// Valid reports whether p is a recognized payment purpose.
func (p Purpose) Valid() bool {
	return p == PurposeProgramFee || p == PurposeSubscriptionPurchase
}

// Ledger outcome values. A reference may appear at most once with
// OutcomeSuccessful; rejected and pending rows carry no such constraint.
const (
	OutcomeSuccessful    = "successful"
	OutcomeRejected      = "rejected"
	OutcomePendingManual = "pending_manual"
)

// Payment channels recorded on ledger entries.
const (
	ChannelFlutterwave    = "flutterwave"
	ChannelManualTransfer = "manual_transfer"
)

// GatewayRecord is the normalized result of one gateway verification call.
// It is ephemeral: it exists only for the duration of a single verification
// and is never persisted as-is. Its amount, currency and status are the sole
// trusted source of truth for whether a payment actually happened.
type GatewayRecord struct {
	Status                string // gateway payment status: "successful", "failed", "pending"
	Amount                int64  // kobo
	Currency              string
	Reference             string // gateway-assigned reference (flw_ref)
	CounterpartyReference string // merchant-supplied tx_ref, carries the account binding
	GatewayTransactionID  string // gateway-assigned numeric transaction id
}

// LedgerEntry is an immutable record of a verification outcome. Entries are
// appended exactly once per reference that reaches a terminal decision and
// are never updated or deleted, except for the manual-review transition from
// pending_manual to a terminal outcome.
type LedgerEntry struct {
	ID                   uuid.UUID  `json:"id"`
	AccountID            uuid.UUID  `json:"account_id"`
	Amount               int64      `json:"amount"` // kobo
	Currency             string     `json:"currency"`
	Reference            string     `json:"reference"`
	Purpose              Purpose    `json:"purpose"`
	Outcome              string     `json:"outcome"`
	Channel              string     `json:"channel"`
	GatewayTransactionID *string    `json:"gateway_transaction_id,omitempty"`
	GatewayReference     *string    `json:"gateway_reference,omitempty"`
	FailureReason        *string    `json:"failure_reason,omitempty"`
	ReviewedBy           *uuid.UUID `json:"reviewed_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// VerifyPaymentRequest is the DTO for the inbound verification endpoint.
type VerifyPaymentRequest struct {
	TransactionID string      `json:"transaction_id"`
	AccountID     uuid.UUID   `json:"account_id"`
	Purpose       Purpose     `json:"purpose"`
	ProgramType   ProgramType `json:"program_type,omitempty"`
}

// VerifyPaymentResult is returned to the caller after a successful
// verification.
type VerifyPaymentResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Amount  int64   `json:"amount,omitempty"`
	Purpose Purpose `json:"purpose,omitempty"`
}

// ManualPaymentRequest is the DTO for the offline bank-transfer submission.
type ManualPaymentRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"` // kobo, as claimed by the payer
	Purpose   Purpose   `json:"purpose"`
}

// FeeSchedule maps (purpose, program type) to the expected amount in kobo.
// It is built from the administrator-managed portal_settings rows; raw
// key/value pairs never reach the validation logic.
type FeeSchedule struct {
	JAMBFee         int64
	ALevelFee       int64
	OLevelFee       int64
	SubscriptionFee int64
}
