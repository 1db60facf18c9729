package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ChargeStatus is the scheduled-charge lifecycle state.
//
//	pending -> processing -> succeeded | failed
//	pending -> canceled
//
// processing is claimed with a conditional update so two triggers cannot
// both own the same charge. succeeded, failed and canceled are terminal.
type ChargeStatus string

const (
	StatusPending    ChargeStatus = "pending"
	StatusProcessing ChargeStatus = "processing"
	StatusSucceeded  ChargeStatus = "succeeded"
	StatusFailed     ChargeStatus = "failed"
	StatusCanceled   ChargeStatus = "canceled"
)

// Terminal reports whether the status admits no further transitions.
func (s ChargeStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// ScheduledCharge is one ad-hoc charge an operator queued against a billing
// client. Amount is in the currency's minor unit.
type ScheduledCharge struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	BillingClientID snowflake.ID `json:"billing_client_id" gorm:"not null;index"`
	CreatedBy       string       `json:"created_by" gorm:"type:text;not null"`
	Description     string       `json:"description" gorm:"type:text;not null"`
	Amount          int64        `json:"amount" gorm:"not null"`
	Currency        string       `json:"currency" gorm:"type:text;not null"`
	Status          ChargeStatus `json:"status" gorm:"type:text;not null;default:'pending';index"`
	ScheduledFor    time.Time    `json:"scheduled_for" gorm:"not null;index"`
	StripeInvoiceID *string      `json:"stripe_invoice_id"`
	// StripePaymentIntentID is set only by the auto-charge branch; a
	// send-invoice charge has no intent until the client pays out-of-band.
	StripePaymentIntentID *string    `json:"stripe_payment_intent_id"`
	InvoiceURL            *string    `json:"invoice_url"`
	InvoicePDF            *string    `json:"invoice_pdf"`
	FailureReason         *string    `json:"failure_reason"`
	ProcessedAt           *time.Time `json:"processed_at"`
	CreatedAt             time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ScheduledCharge) TableName() string { return "scheduled_charges" }
