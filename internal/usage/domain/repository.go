package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence boundary for the usage ledger.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *UsageEvent) error

	// FindUnbilled returns unbilled events for a billing period, ordered by
	// id. A zero workspaceID returns events for every workspace.
	FindUnbilled(ctx context.Context, db *gorm.DB, billingPeriod string, workspaceID snowflake.ID) ([]UsageEvent, error)

	// MarkBilled updates billed=false rows only and returns the number of
	// rows it changed.
	MarkBilled(ctx context.Context, db *gorm.DB, billingPeriod string, workspaceID, toolID snowflake.ID) (int64, error)
}
