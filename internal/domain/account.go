/**
 * @description
 * This file defines the core domain models for the payment-service.
 * These structs represent the entities used throughout the service's
 * business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in kobo (the smallest NGN unit), which
 *   avoids floating-point inaccuracies with financial data. Flutterwave
 *   reports naira; the gateway client converts once at the boundary.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgramType identifies the academic program an account registered for.
type ProgramType string

const (
	ProgramJAMB   ProgramType = "JAMB"
	ProgramALevel ProgramType = "A-Level"
	ProgramOLevel ProgramType = "O-Level"
	ProgramNone   ProgramType = ""
)

// PaymentStatus is the entitlement state of an account's program fee.
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "unpaid"
	PaymentStatusPendingManual PaymentStatus = "pending_manual"
	PaymentStatusPaid          PaymentStatus = "paid"
)

// Account represents a registered student account. Rows are created by the
// registration flow (outside this service); the payment fields are mutated
// only through the entitlement updater in internal/store.
type Account struct {
	ID            uuid.UUID     `json:"id"`
	Email         string        `json:"email"`
	FullName      string        `json:"full_name"`
	ProgramType   ProgramType   `json:"program_type"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
}
