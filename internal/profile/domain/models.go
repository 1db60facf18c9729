package domain

import (
	"time"
)

// TrialStatus is the account lifecycle state carried on a profile.
type TrialStatus string

const (
	StatusTrialing     TrialStatus = "trialing"
	StatusActive       TrialStatus = "active"
	StatusPastDue      TrialStatus = "past_due"
	StatusCanceled     TrialStatus = "canceled"
	StatusExpiredTrial TrialStatus = "expired_trial"
)

// Profile is one user account. IDs are external auth subjects, not
// snowflakes, so they stay opaque strings.
type Profile struct {
	ID               string      `json:"id" gorm:"primaryKey;type:text"`
	Email            string      `json:"email" gorm:"type:text;not null"`
	FullName         string      `json:"full_name" gorm:"type:text"`
	Status           TrialStatus `json:"status" gorm:"type:text;not null;default:'trialing'"`
	TrialEndsAt      *time.Time  `json:"trial_ends_at"`
	StripeCustomerID *string     `json:"stripe_customer_id" gorm:"type:text"`
	CreatedAt        time.Time   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }
