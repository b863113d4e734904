/**
 * @description
 * This file contains the core business logic for the payment-service. The
 * `Service` struct composes the injected collaborators (repository, gateway
 * verifier, audit event producer) into the request-scoped reconciliation
 * pipeline.
 *
 * Key features:
 * - Replay-guarded, gateway-confirmed payment verification.
 * - Atomic entitlement updates (program fee, CBT subscription).
 * - Manual/offline payment review queue for administrators.
 *
 * @dependencies
 * - context, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/flutterwave, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/meritcollege/payment-service/internal/domain"
	"github.com/meritcollege/payment-service/internal/store"
	"github.com/meritcollege/payment-service/pkg/flutterwave"
	"github.com/meritcollege/payment-service/pkg/rabbitmq"
)

// GatewayVerifier confirms a transaction with the payment gateway. The
// concrete implementation is *flutterwave.Client; tests substitute a stub.
type GatewayVerifier interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*flutterwave.VerificationResult, error)
}

// Config carries the policy knobs the reconciliation pipeline needs.
type Config struct {
	OperatingCurrency        string
	AmountTolerance          float64 // fraction of the expected amount, 0..0.05
	SubscriptionValidityDays int
	EventExchange            string
}

// Service provides the core business logic for payment verification.
type Service struct {
	repo    store.Repository
	gateway GatewayVerifier
	events  rabbitmq.Publisher
	cfg     Config
}

// NewService creates a new payment service instance.
func NewService(repo store.Repository, gateway GatewayVerifier, events rabbitmq.Publisher, cfg Config) *Service {
	if cfg.OperatingCurrency == "" {
		cfg.OperatingCurrency = "NGN"
	}
	if cfg.SubscriptionValidityDays <= 0 {
		cfg.SubscriptionValidityDays = 30
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		events:  events,
		cfg:     cfg,
	}
}

// GetAccount returns the account for the given id.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// GetFeeSchedule returns the current typed fee schedule.
func (s *Service) GetFeeSchedule(ctx context.Context) (*domain.FeeSchedule, error) {
	return s.repo.LoadFeeSchedule(ctx)
}

// GetPaymentHistory returns an account's ledger entries, newest first.
func (s *Service) GetPaymentHistory(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	return s.repo.ListLedgerEntriesByAccount(ctx, accountID)
}

// GetSubscriptionStatus reports whether the account currently holds an
// unexpired subscription.
func (s *Service) GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) (*domain.SubscriptionStatus, error) {
	sub, err := s.repo.FindActiveSubscription(ctx, accountID)
	if err != nil {
		if err == store.ErrSubscriptionNotFound {
			return &domain.SubscriptionStatus{Active: false}, nil
		}
		return nil, err
	}
	return &domain.SubscriptionStatus{
		Active:    sub.Active(time.Now().UTC()),
		PlanType:  sub.PlanType,
		ExpiresAt: &sub.ExpiresAt,
	}, nil
}

// publishEvent fires an audit event. Publishing is best-effort; failures are
// logged and never affect the verification outcome.
func (s *Service) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, s.cfg.EventExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=service msg=\"audit event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
