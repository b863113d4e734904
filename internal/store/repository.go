/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the payment-service. The
 * interface decouples the reconciliation logic from PostgreSQL so every
 * collaborator can be substituted with a test double.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
//
// The ledger is append-only: entries are inserted once and never updated,
// with the single exception of the manual-review transition from
// pending_manual to a terminal outcome. Entitlement mutations and their
// ledger append are committed as one transaction.
type Repository interface {
	// Account methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)

	// Replay guard. Reports whether a successful ledger entry already exists
	// for the reference. Errors mean the store is unreachable; callers must
	// fail closed.
	HasSuccessfulLedgerEntry(ctx context.Context, reference string) (bool, error)

	// Fee schedule, built from the portal_settings key/value rows.
	LoadFeeSchedule(ctx context.Context) (*domain.FeeSchedule, error)

	// Entitlement + ledger, one transaction each. Both return
	// ErrDuplicateReference when the successful-reference uniqueness
	// constraint rejects the insert, which callers treat as a replay.
	ApplyProgramFeePayment(ctx context.Context, accountID uuid.UUID, entry *domain.LedgerEntry) error
	ApplySubscriptionPurchase(ctx context.Context, sub *domain.Subscription, entry *domain.LedgerEntry) error

	// Audit trail for fraud-class rejections. Rejected rows never conflict
	// with the successful-reference constraint.
	RecordRejectedAttempt(ctx context.Context, entry *domain.LedgerEntry) error

	// Manual/offline payment review queue.
	CreateManualPaymentEntry(ctx context.Context, entry *domain.LedgerEntry) error
	ListPendingManualEntries(ctx context.Context) ([]domain.LedgerEntry, error)
	ApproveManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID) (*domain.LedgerEntry, error)
	RejectManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID, reason string) (*domain.LedgerEntry, error)

	// History and subscription reads.
	ListLedgerEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error)
	FindActiveSubscription(ctx context.Context, accountID uuid.UUID) (*domain.Subscription, error)
}
