// Package sweep is the daily housekeeping driver: trial notices, trial
// expiry, and settlement of due scheduled charges.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/lgltools/platform/internal/config"
	"github.com/lgltools/platform/internal/providers/email"
	"github.com/lgltools/platform/internal/settlement"
	"go.uber.org/fx"
	"go.uber.org/zap"

	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	profiledomain "github.com/lgltools/platform/internal/profile/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

// RunResult reports what one sweep accomplished. Errors are collected, not
// fatal: every unit of work is independent.
type RunResult struct {
	TrialNoticesSent int      `json:"trial_notices_sent"`
	TrialsExpired    int      `json:"trials_expired"`
	ChargesPaid      int      `json:"charges_paid"`
	ChargesFailed    int      `json:"charges_failed"`
	ChargesSkipped   int      `json:"charges_skipped"`
	Errors           []string `json:"errors,omitempty"`
}

type Service interface {
	Run(ctx context.Context, now time.Time) (*RunResult, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Settings   *config.BillingSettingsHolder
	Profiles   profiledomain.Service
	Charges    chargedomain.Service
	Workspaces workspacedomain.Service
	Dispatcher settlement.Service
	Email      email.Provider
}

type sweeper struct {
	log        *zap.Logger
	settings   *config.BillingSettingsHolder
	profiles   profiledomain.Service
	charges    chargedomain.Service
	workspaces workspacedomain.Service
	dispatcher settlement.Service
	email      email.Provider
}

func New(p Params) Service {
	return &sweeper{
		log:        p.Log.Named("sweep.service"),
		settings:   p.Settings,
		profiles:   p.Profiles,
		charges:    p.Charges,
		workspaces: p.Workspaces,
		dispatcher: p.Dispatcher,
		email:      p.Email,
	}
}

func (s *sweeper) Run(ctx context.Context, now time.Time) (*RunResult, error) {
	now = now.UTC()
	result := &RunResult{}

	s.noticeEndingTrials(ctx, now, result)
	s.expireTrials(ctx, now, result)
	s.settleDueCharges(ctx, now, result)

	s.log.Info("sweep complete",
		zap.Int("trial_notices_sent", result.TrialNoticesSent),
		zap.Int("trials_expired", result.TrialsExpired),
		zap.Int("charges_paid", result.ChargesPaid),
		zap.Int("charges_failed", result.ChargesFailed),
		zap.Int("charges_skipped", result.ChargesSkipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *sweeper) noticeEndingTrials(ctx context.Context, now time.Time, result *RunResult) {
	settings := s.settings.Get()
	from := now.Add(days(settings.TrialNoticeMinDays))
	to := now.Add(days(settings.TrialNoticeMaxDays))

	profiles, err := s.profiles.ListTrialEndingBetween(ctx, from, to)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list ending trials: %v", err))
		return
	}
	for _, profile := range profiles {
		err := s.email.SendTemplate(ctx, []string{profile.Email}, "trial_ending", map[string]interface{}{
			"full_name":     profile.FullName,
			"trial_ends_at": profile.TrialEndsAt.Format("January 2, 2006"),
			"billing_url":   "https://app.lgltools.com/billing",
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("trial notice for %s: %v", profile.ID, err))
			continue
		}
		result.TrialNoticesSent++
	}
}

func (s *sweeper) expireTrials(ctx context.Context, now time.Time, result *RunResult) {
	profiles, err := s.profiles.ListTrialExpired(ctx, now)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list expired trials: %v", err))
		return
	}
	for _, profile := range profiles {
		expired, err := s.profiles.ExpireTrial(ctx, profile.ID, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("expire trial %s: %v", profile.ID, err))
			continue
		}
		if !expired {
			continue
		}
		result.TrialsExpired++

		// The state change is already committed; a lost email is only noise.
		err = s.email.SendTemplate(ctx, []string{profile.Email}, "trial_expired", map[string]interface{}{
			"full_name":     profile.FullName,
			"trial_ends_at": profile.TrialEndsAt.Format("January 2, 2006"),
			"billing_url":   "https://app.lgltools.com/billing",
		})
		if err != nil {
			s.log.Warn("trial expired email failed",
				zap.String("profile_id", profile.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *sweeper) settleDueCharges(ctx context.Context, now time.Time, result *RunResult) {
	settings := s.settings.Get()
	charges, err := s.charges.ListDue(ctx, now, settings.SweepBatchSize)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list due charges: %v", err))
		return
	}

	for _, charge := range charges {
		client, err := s.workspaces.GetBillingClient(ctx, charge.BillingClientID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("charge %s: load client: %v", charge.ID, err))
			continue
		}
		if client.Status != workspacedomain.BillingClientStatusActive {
			result.ChargesSkipped++
			continue
		}

		policy := settlement.PolicyForClient(client)
		dispatched, err := s.dispatcher.Dispatch(ctx, charge.ID, policy)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("charge %s: dispatch: %v", charge.ID, err))
			continue
		}

		switch dispatched.Outcome {
		case settlement.OutcomePaid, settlement.OutcomeInvoiced:
			result.ChargesPaid++
		case settlement.OutcomeFailed:
			result.ChargesFailed++
			s.notifyChargeFailure(ctx, client, &charge, dispatched.FailureReason)
		default:
			// Deferred: the charge stays pending until the client finishes
			// billing setup.
			result.ChargesSkipped++
		}
	}
}

func (s *sweeper) notifyChargeFailure(ctx context.Context, client *workspacedomain.BillingClient, charge *chargedomain.ScheduledCharge, reason string) {
	if client.UserID == nil {
		return
	}
	profile, err := s.profiles.GetByID(ctx, *client.UserID)
	if err != nil {
		s.log.Warn("charge failure email skipped, no profile",
			zap.Int64("charge_id", int64(charge.ID)),
			zap.String("user_id", *client.UserID),
		)
		return
	}
	err = s.email.SendTemplate(ctx, []string{profile.Email}, "charge_failed", map[string]interface{}{
		"amount":         fmt.Sprintf("%.2f %s", float64(charge.Amount)/100, charge.Currency),
		"description":    charge.Description,
		"failure_reason": reason,
	})
	if err != nil {
		s.log.Warn("charge failure email failed",
			zap.Int64("charge_id", int64(charge.ID)),
			zap.Error(err),
		)
	}
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(24*time.Hour))
}
