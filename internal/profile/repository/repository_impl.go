package repository

import (
	"context"
	"time"

	profiledomain "github.com/lgltools/platform/internal/profile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() profiledomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *profiledomain.Profile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*profiledomain.Profile, error) {
	var profile profiledomain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, full_name, status, trial_ends_at, stripe_customer_id, created_at, updated_at
		 FROM profiles WHERE id = ?`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindTrialEndingBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]profiledomain.Profile, error) {
	var profiles []profiledomain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, full_name, status, trial_ends_at, stripe_customer_id, created_at, updated_at
		 FROM profiles
		 WHERE status = ? AND trial_ends_at >= ? AND trial_ends_at < ?
		 ORDER BY trial_ends_at ASC`,
		profiledomain.StatusTrialing,
		from,
		to,
	).Scan(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repo) FindTrialExpired(ctx context.Context, db *gorm.DB, asOf time.Time) ([]profiledomain.Profile, error) {
	var profiles []profiledomain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, full_name, status, trial_ends_at, stripe_customer_id, created_at, updated_at
		 FROM profiles
		 WHERE status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?
		 ORDER BY trial_ends_at ASC`,
		profiledomain.StatusTrialing,
		asOf,
	).Scan(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repo) UpdateStatusIfTrialing(ctx context.Context, db *gorm.DB, id string, status profiledomain.TrialStatus, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE profiles SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status,
		at,
		id,
		profiledomain.StatusTrialing,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
