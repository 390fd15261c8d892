// Package ledger owns per-device entitlement state: the one-time free trial
// and the purchased credit balance. It decides whether a device may synthesize
// speech and records consumption.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/metrics"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
)

// Store is the persistence contract the ledger runs on. The MySQL
// implementation lives in internal/repository; tests use in-memory fakes.
type Store interface {
	// ConsumeTrial atomically burns the device's free trial, creating the
	// record if absent, and reports whether this call consumed it.
	ConsumeTrial(ctx context.Context, deviceID string) (bool, error)
	FindTrial(ctx context.Context, deviceID string) (*models.FreeTrial, error)
	FindAccount(ctx context.Context, deviceID string) (*models.CreditAccount, error)
	// Grant upserts the credit account without lost updates under concurrency.
	Grant(ctx context.Context, deviceID string, credits int) error
	// Debit consumes one credit only while total_used < total_granted and
	// reports whether it applied.
	Debit(ctx context.Context, deviceID string) (bool, error)
}

// Access is the outcome of an entitlement check.
type Access struct {
	Allowed bool
	Channel models.AccessChannel
}

// Status is a side-effect-free snapshot of a device's entitlement.
type Status struct {
	TotalCredits     int  `json:"total_tokens"`
	UsedCredits      int  `json:"used_tokens"`
	RemainingCredits int  `json:"remaining_tokens"`
	TrialAvailable   bool `json:"free_trial_available"`
	TrialUsed        bool `json:"free_trial_used"`
}

type Service struct {
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, log: log, metrics: m}
}

// CheckAccess decides whether the device may synthesize and on which channel.
// The free trial is consumed by the act of checking, even if the synthesis
// later fails; paid access leaves the balance untouched until Debit.
func (s *Service) CheckAccess(ctx context.Context, deviceID string) (Access, error) {
	consumed, err := s.store.ConsumeTrial(ctx, deviceID)
	if err != nil {
		return Access{}, fmt.Errorf("consume trial: %w", err)
	}
	if consumed {
		s.metrics.FreeTrialUsed.Inc()
		s.log.Info("free trial consumed", "device_id", deviceID)
		return Access{Allowed: true, Channel: models.ChannelFreeTrial}, nil
	}

	account, err := s.store.FindAccount(ctx, deviceID)
	if err != nil {
		return Access{}, fmt.Errorf("find credit account: %w", err)
	}
	if account != nil && account.Remaining() > 0 {
		return Access{Allowed: true, Channel: models.ChannelPaid}, nil
	}
	return Access{Allowed: false, Channel: models.ChannelDenied}, nil
}

// Debit consumes one paid credit. The balance guard lives in the store, so two
// requests admitted on the last credit cannot both debit; the loser's synthesis
// has already been delivered and the loss is absorbed rather than surfaced.
func (s *Service) Debit(ctx context.Context, deviceID string) error {
	applied, err := s.store.Debit(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if !applied {
		s.log.Warn("debit lost to concurrent request", "device_id", deviceID)
		return nil
	}
	s.metrics.CreditsConsumed.Inc()
	return nil
}

// Grant adds purchased credits to the device account, creating it on demand.
func (s *Service) Grant(ctx context.Context, deviceID string, credits int) error {
	if credits <= 0 {
		return fmt.Errorf("grant credits must be positive, got %d", credits)
	}
	if err := s.store.Grant(ctx, deviceID, credits); err != nil {
		return fmt.Errorf("grant: %w", err)
	}
	s.log.Info("credits granted", "device_id", deviceID, "credits", credits)
	return nil
}

// Status returns the device's entitlement snapshot without side effects.
func (s *Service) Status(ctx context.Context, deviceID string) (Status, error) {
	trial, err := s.store.FindTrial(ctx, deviceID)
	if err != nil {
		return Status{}, fmt.Errorf("find trial: %w", err)
	}
	trialUsed := trial != nil && trial.Consumed

	status := Status{
		TrialAvailable: !trialUsed,
		TrialUsed:      trialUsed,
	}

	account, err := s.store.FindAccount(ctx, deviceID)
	if err != nil {
		return Status{}, fmt.Errorf("find credit account: %w", err)
	}
	if account != nil {
		status.TotalCredits = account.TotalGranted
		status.UsedCredits = account.TotalUsed
		status.RemainingCredits = account.Remaining()
	}
	return status, nil
}
