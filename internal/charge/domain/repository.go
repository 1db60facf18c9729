package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, charge *ScheduledCharge) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ScheduledCharge, error)
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]ScheduledCharge, error)
	FindDue(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]ScheduledCharge, error)

	// TransitionStatus moves a charge from one status to another and returns
	// the number of rows changed. Zero means the charge was not in the
	// expected state.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to ChargeStatus, at time.Time) (int64, error)

	// FinalizeSucceeded writes the terminal succeeded state with gateway
	// artifacts, guarded on the processing state.
	FinalizeSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, result SucceededResult, at time.Time) (int64, error)

	// FinalizeFailed writes the terminal failed state with the failure
	// reason, guarded on the processing state.
	FinalizeFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (int64, error)
}
