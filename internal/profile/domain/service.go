package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidEmail = errors.New("invalid_email")
	ErrNotFound     = errors.New("profile_not_found")
)

type CreateRequest struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	TrialEndsAt *time.Time `json:"trial_ends_at"`
}

// Service manages profile trial state for the periodic sweep.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Profile, error)
	GetByID(ctx context.Context, id string) (*Profile, error)

	// ListTrialEndingBetween returns trialing profiles whose trial ends
	// inside [from, to).
	ListTrialEndingBetween(ctx context.Context, from, to time.Time) ([]Profile, error)

	// ListTrialExpired returns trialing profiles whose trial end has passed.
	ListTrialExpired(ctx context.Context, asOf time.Time) ([]Profile, error)

	// ExpireTrial moves a still-trialing profile to expired_trial. Returns
	// false without error when the profile already left the trialing state,
	// so concurrent sweeps cannot double-fire.
	ExpireTrial(ctx context.Context, id string, at time.Time) (bool, error)
}
