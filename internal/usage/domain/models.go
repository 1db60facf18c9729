// Package domain contains the usage ledger models. The ledger is append-only:
// rows are inserted by the recorder, flipped to billed by the marker, and
// never deleted or re-priced.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// UsageEvent is one immutable metered-usage fact. Quantity and
// UnitCostSnapshot never change after insert; the snapshot keeps the event
// billable at the price in force when it happened, whatever the catalog does
// later.
type UsageEvent struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	WorkspaceID      snowflake.ID      `json:"workspace_id" gorm:"not null;index:ix_usage_period_ws,priority:2"`
	UserID           string            `json:"user_id" gorm:"type:text;not null"`
	ToolID           snowflake.ID      `json:"tool_id" gorm:"not null"`
	EventType        string            `json:"event_type" gorm:"type:text;not null"`
	Quantity         decimal.Decimal   `json:"quantity" gorm:"type:numeric(20,6);not null"`
	UnitCostSnapshot decimal.Decimal   `json:"unit_cost_snapshot" gorm:"type:numeric(20,6);not null"`
	Metadata         datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	BillingPeriod    string            `json:"billing_period" gorm:"type:text;not null;index:ix_usage_period_ws,priority:1"`
	Billed           bool              `json:"billed" gorm:"not null;default:false"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// Cost is quantity × unit cost snapshot for this event.
func (e *UsageEvent) Cost() decimal.Decimal {
	return e.Quantity.Mul(e.UnitCostSnapshot)
}

// UsageAggregate is the per-(workspace, tool) rollup of unbilled usage for
// one billing period. Computed fresh on every aggregation call, never
// persisted.
type UsageAggregate struct {
	WorkspaceID   snowflake.ID    `json:"workspace_id"`
	WorkspaceName string          `json:"workspace_name"`
	ToolID        snowflake.ID    `json:"tool_id"`
	ToolSlug      string          `json:"tool_slug"`
	ToolName      string          `json:"tool_name"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	EventCount    int             `json:"event_count"`
	BillingPeriod string          `json:"billing_period"`
}
