package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrNotFound           = errors.New("charge_not_found")
	ErrNotPending         = errors.New("charge_not_pending")
	ErrNotProcessing      = errors.New("charge_not_processing")
)

type CreateRequest struct {
	BillingClientID snowflake.ID `json:"billing_client_id"`
	CreatedBy       string       `json:"created_by"`
	Description     string       `json:"description"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	ScheduledFor    time.Time    `json:"scheduled_for"`
}

type ListRequest struct {
	BillingClientID snowflake.ID
	Status          ChargeStatus
}

// SucceededResult carries the gateway artifacts stored on a settled charge.
type SucceededResult struct {
	InvoiceID       string
	PaymentIntentID string
	InvoiceURL      string
	InvoicePDF      string
}

// Service owns the scheduled-charge lifecycle. Settlement itself lives
// elsewhere; this service only moves charges between states with guards.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*ScheduledCharge, error)
	List(ctx context.Context, req ListRequest) ([]ScheduledCharge, error)
	GetByID(ctx context.Context, id snowflake.ID) (*ScheduledCharge, error)

	// Begin claims a pending charge for settlement by moving it to
	// processing. ErrNotPending when the charge exists in any other state.
	Begin(ctx context.Context, id snowflake.ID) (*ScheduledCharge, error)

	// Cancel moves a pending charge to canceled. Processing and terminal
	// charges cannot be canceled.
	Cancel(ctx context.Context, id snowflake.ID) (*ScheduledCharge, error)

	// MarkSucceeded finalizes a processing charge with its gateway invoice
	// artifacts and stamps processed_at.
	MarkSucceeded(ctx context.Context, id snowflake.ID, result SucceededResult, at time.Time) error

	// MarkFailed finalizes a processing charge with a failure reason and
	// stamps processed_at.
	MarkFailed(ctx context.Context, id snowflake.ID, reason string, at time.Time) error

	// ListDue returns pending charges whose scheduled_for has passed,
	// oldest first, capped at limit.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]ScheduledCharge, error)
}
