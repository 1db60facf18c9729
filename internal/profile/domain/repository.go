package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Profile, error)
	FindTrialEndingBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Profile, error)
	FindTrialExpired(ctx context.Context, db *gorm.DB, asOf time.Time) ([]Profile, error)

	// UpdateStatusIfTrialing flips status for a trialing profile only and
	// returns the number of rows changed.
	UpdateStatusIfTrialing(ctx context.Context, db *gorm.DB, id string, status TrialStatus, at time.Time) (int64, error)
}
