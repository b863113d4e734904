package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanCBTPractice is the only time-boxed product sold today: access to the
// CBT exam-practice module.
const PlanCBTPractice = "cbt_practice"

// Subscription grants time-boxed access to a product. Purchases create fresh
// rows; an existing unexpired subscription is superseded, never extended.
type Subscription struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	PlanType   string    `json:"plan_type"`
	AmountPaid int64     `json:"amount_paid"` // kobo
	StartsAt   time.Time `json:"starts_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Reference  string    `json:"reference"`
	CreatedAt  time.Time `json:"created_at"`
}

// Active reports whether the subscription grants access at the given instant.
func (s *Subscription) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// SubscriptionStatus is the DTO returned when a client asks whether an
// account currently has CBT access.
type SubscriptionStatus struct {
	Active    bool       `json:"active"`
	PlanType  string     `json:"plan_type,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
