package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lgltools/platform/internal/period"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity          = errors.New("invalid_quantity")
	ErrInvalidEventType         = errors.New("invalid_event_type")
	ErrToolNotFound             = errors.New("tool_not_found")
	ErrToolDisabled             = errors.New("tool_disabled")
	ErrToolNotAssigned          = errors.New("tool_not_assigned")
	ErrToolDisabledForWorkspace = errors.New("tool_disabled_for_workspace")
	ErrRateNotConfigured        = errors.New("rate_not_configured")
)

// RecordRequest carries one usage fact from the ingest surface. ToolSlug is
// resolved against the catalog; the caller never supplies a price.
type RecordRequest struct {
	WorkspaceID snowflake.ID           `json:"workspace_id"`
	UserID      string                 `json:"user_id"`
	ToolSlug    string                 `json:"tool_slug"`
	EventType   string                 `json:"event_type"`
	Quantity    decimal.Decimal        `json:"quantity"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Service records, aggregates and settles the usage ledger for billing.
type Service interface {
	// Record validates the request against the catalog and workspace
	// assignment, snapshots the effective unit rate and appends one event.
	Record(ctx context.Context, req RecordRequest) (*UsageEvent, error)

	// Aggregate rolls up unbilled events for the given period into
	// per-(workspace, tool) aggregates. A zero workspaceID means all
	// workspaces. Events remain unbilled.
	Aggregate(ctx context.Context, ym period.YearMonth, workspaceID snowflake.ID) ([]UsageAggregate, error)

	// MarkBilled flips unbilled events for (period, workspace, tool) to
	// billed and reports how many rows changed. Already-billed rows are
	// untouched, which makes the call idempotent.
	MarkBilled(ctx context.Context, ym period.YearMonth, workspaceID, toolID snowflake.ID) (int64, error)
}
