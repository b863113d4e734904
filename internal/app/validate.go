package app

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
)

// validateIntegrity runs the three independent gates on a gateway record.
// All must pass; any failure is terminal for the attempt and grants no
// partial entitlement.
//
// The ownership gate keeps the documented convention from payment
// initiation: the merchant tx_ref embeds the paying account's id
// ("MCAS-<account_id>-<timestamp>"), so containment of the id proves the
// receipt belongs to the claimant. This is a soft string binding, not a
// cryptographic one; a server-generated unguessable token bound at
// initiation time would be the stronger design.
func (s *Service) validateIntegrity(record *domain.GatewayRecord, expected int64, accountID uuid.UUID) error {
	if !strings.EqualFold(record.Currency, s.cfg.OperatingCurrency) {
		return ErrCurrencyMismatch
	}

	if record.Amount < minimumAcceptable(expected, s.cfg.AmountTolerance) {
		return &AmountMismatchError{Expected: expected, Received: record.Amount}
	}

	if !strings.Contains(record.CounterpartyReference, accountID.String()) {
		return &OwnershipMismatchError{
			AccountID:             accountID.String(),
			CounterpartyReference: record.CounterpartyReference,
		}
	}

	return nil
}

// minimumAcceptable is the smallest amount in kobo that passes the amount
// gate: expected reduced by the configured tolerance fraction, rounded up so
// the tolerance is never silently widened by truncation.
func minimumAcceptable(expected int64, tolerance float64) int64 {
	if tolerance <= 0 {
		return expected
	}
	return int64(math.Ceil(float64(expected) * (1 - tolerance)))
}
