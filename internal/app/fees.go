package app

import "github.com/meritcollege/payment-service/internal/domain"

// ExpectedAmount resolves the configured fee in kobo for a purpose and
// program type. Unrecognized program types deliberately fall back to the
// O-Level tier instead of erroring: availability is preferred at this step,
// and strictness is enforced by the integrity validator afterwards.
func ExpectedAmount(schedule *domain.FeeSchedule, purpose domain.Purpose, programType domain.ProgramType) int64 {
	if purpose == domain.PurposeSubscriptionPurchase {
		return schedule.SubscriptionFee
	}
	switch programType {
	case domain.ProgramJAMB:
		return schedule.JAMBFee
	case domain.ProgramALevel:
		return schedule.ALevelFee
	default:
		return schedule.OLevelFee
	}
}
