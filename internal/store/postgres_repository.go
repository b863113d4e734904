/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed to read accounts and the fee
 * schedule, enforce the replay-prevention invariant, and commit entitlement
 * mutations together with their ledger append in a single transaction.
 *
 * @dependencies
 * - context, errors, strconv: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meritcollege/payment-service/internal/domain"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateReference   = errors.New("reference already recorded as successful")
	ErrManualEntryNotFound  = errors.New("manual payment entry not found or already reviewed")
	ErrSubscriptionNotFound = errors.New("no active subscription")
)

// Setting keys managed by administrators. Values are naira amounts stored as
// text; they are converted to kobo when the schedule is loaded.
const (
	settingFeeJAMB         = "fee_jamb"
	settingFeeALevel       = "fee_alevel"
	settingFeeOLevel       = "fee_olevel"
	settingFeeSubscription = "fee_cbt_subscription"
)

const ledgerColumns = `id, account_id, amount, currency, reference, purpose, outcome, channel,
	gateway_transaction_id, gateway_reference, failure_reason, reviewed_by, created_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindAccountByID retrieves an account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, email, full_name, program_type, payment_status, created_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.Email,
		&account.FullName,
		&account.ProgramType,
		&account.PaymentStatus,
		&account.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// HasSuccessfulLedgerEntry reports whether a successful payment with the
// given reference is already on the ledger. This is the replay anchor: it
// must be consulted before any entitlement mutation.
func (r *PostgresRepository) HasSuccessfulLedgerEntry(ctx context.Context, reference string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE reference = $1 AND outcome = $2)`
	if err := r.db.QueryRow(ctx, query, reference, domain.OutcomeSuccessful).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LoadFeeSchedule reads the portal_settings rows and maps them into a typed
// FeeSchedule. Settings values are naira; the schedule is kobo. Missing or
// malformed rows resolve to zero so that a half-configured portal rejects
// nothing it should accept (strictness lives in the integrity validator).
func (r *PostgresRepository) LoadFeeSchedule(ctx context.Context) (*domain.FeeSchedule, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM portal_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.FeeSchedule{
		JAMBFee:         nairaSettingToKobo(settings[settingFeeJAMB]),
		ALevelFee:       nairaSettingToKobo(settings[settingFeeALevel]),
		OLevelFee:       nairaSettingToKobo(settings[settingFeeOLevel]),
		SubscriptionFee: nairaSettingToKobo(settings[settingFeeSubscription]),
	}, nil
}

func nairaSettingToKobo(value string) int64 {
	if value == "" {
		return 0
	}
	naira, err := strconv.ParseFloat(value, 64)
	if err != nil || naira < 0 {
		return 0
	}
	return int64(math.Round(naira * 100))
}

// ApplyProgramFeePayment marks the account as paid and appends the successful
// ledger entry in one transaction. Marking is idempotent: an account that is
// already paid is left untouched. A duplicate reference surfaces as
// ErrDuplicateReference, which callers must treat as a detected replay.
func (r *PostgresRepository) ApplyProgramFeePayment(ctx context.Context, accountID uuid.UUID, entry *domain.LedgerEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Zero rows affected means the account was already paid; re-applying is a no-op.
	_, err = tx.Exec(ctx,
		`UPDATE accounts SET payment_status = $2 WHERE id = $1 AND payment_status <> $2`,
		accountID, domain.PaymentStatusPaid,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return tx.Commit(ctx)
}

// ApplySubscriptionPurchase inserts a fresh subscription row and the
// successful ledger entry in one transaction. Existing subscriptions are
// never extended or mutated; each purchase is its own grant.
func (r *PostgresRepository) ApplySubscriptionPurchase(ctx context.Context, sub *domain.Subscription, entry *domain.LedgerEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (id, account_id, plan_type, amount_paid, starts_at, expires_at, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.AccountID, sub.PlanType, sub.AmountPaid, sub.StartsAt, sub.ExpiresAt, sub.Reference,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordRejectedAttempt appends a rejected ledger entry for the audit trail.
// Rejected rows sit outside the successful-reference uniqueness constraint,
// so repeated fraud attempts each leave their own row.
func (r *PostgresRepository) RecordRejectedAttempt(ctx context.Context, entry *domain.LedgerEntry) error {
	return insertLedgerEntry(ctx, r.db, entry)
}

// CreateManualPaymentEntry records an offline bank-transfer claim as
// pending_manual and moves the account into the pending_manual state in the
// same transaction. The entry stays pending until an administrator reviews it.
func (r *PostgresRepository) CreateManualPaymentEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to create manual payment entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET payment_status = $2 WHERE id = $1 AND payment_status = $3`,
		entry.AccountID, domain.PaymentStatusPendingManual, domain.PaymentStatusUnpaid,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	return tx.Commit(ctx)
}

// ListPendingManualEntries returns the review queue, oldest first.
func (r *PostgresRepository) ListPendingManualEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM payments WHERE outcome = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, domain.OutcomePendingManual)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

// ApproveManualPayment promotes a pending entry to successful and grants the
// program-fee entitlement, all in one transaction. The promotion itself is
// subject to the successful-reference uniqueness constraint, so approving a
// reference that was meanwhile verified automatically fails with
// ErrDuplicateReference instead of double-granting.
func (r *PostgresRepository) ApproveManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE payments SET outcome = $3, reviewed_by = $2
		WHERE id = $1 AND outcome = $4
		RETURNING ` + ledgerColumns
	entry, err := scanLedgerEntry(tx.QueryRow(ctx, query, entryID, reviewerID, domain.OutcomeSuccessful, domain.OutcomePendingManual))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrManualEntryNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET payment_status = $2 WHERE id = $1 AND payment_status <> $2`,
		entry.AccountID, domain.PaymentStatusPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// RejectManualPayment marks a pending entry as rejected and releases the
// account back to unpaid.
func (r *PostgresRepository) RejectManualPayment(ctx context.Context, entryID uuid.UUID, reviewerID uuid.UUID, reason string) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE payments SET outcome = $3, reviewed_by = $2, failure_reason = $5
		WHERE id = $1 AND outcome = $4
		RETURNING ` + ledgerColumns
	entry, err := scanLedgerEntry(tx.QueryRow(ctx, query, entryID, reviewerID, domain.OutcomeRejected, domain.OutcomePendingManual, reason))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrManualEntryNotFound
		}
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET payment_status = $2 WHERE id = $1 AND payment_status = $3`,
		entry.AccountID, domain.PaymentStatusUnpaid, domain.PaymentStatusPendingManual,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLedgerEntriesByAccount returns all ledger entries for an account,
// newest first.
func (r *PostgresRepository) ListLedgerEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM payments WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

// FindActiveSubscription returns the unexpired subscription with the latest
// expiry, if any.
func (r *PostgresRepository) FindActiveSubscription(ctx context.Context, accountID uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
		SELECT id, account_id, plan_type, amount_paid, starts_at, expires_at, reference, created_at
		FROM subscriptions
		WHERE account_id = $1 AND expires_at > now()
		ORDER BY expires_at DESC
		LIMIT 1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.PlanType,
		&sub.AmountPaid,
		&sub.StartsAt,
		&sub.ExpiresAt,
		&sub.Reference,
		&sub.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// execer covers both *pgxpool.Pool and pgx.Tx for ledger inserts.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertLedgerEntry(ctx context.Context, db execer, entry *domain.LedgerEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO payments (id, account_id, amount, currency, reference, purpose, outcome, channel,
			gateway_transaction_id, gateway_reference, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.AccountID,
		entry.Amount,
		entry.Currency,
		entry.Reference,
		entry.Purpose,
		entry.Outcome,
		entry.Channel,
		entry.GatewayTransactionID,
		entry.GatewayReference,
		entry.FailureReason,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Amount,
		&entry.Currency,
		&entry.Reference,
		&entry.Purpose,
		&entry.Outcome,
		&entry.Channel,
		&entry.GatewayTransactionID,
		&entry.GatewayReference,
		&entry.FailureReason,
		&entry.ReviewedBy,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
