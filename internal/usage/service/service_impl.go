package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/lgltools/platform/internal/clock"
	"github.com/lgltools/platform/internal/period"
	"github.com/lgltools/platform/internal/pricing"
	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	usagedomain "github.com/lgltools/platform/internal/usage/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       usagedomain.Repository
	Tools      tooldomain.Service
	Workspaces workspacedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       usagedomain.Repository
	tools      tooldomain.Service
	workspaces workspacedomain.Service
}

func New(p Params) usagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usage.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		tools:      p.Tools,
		workspaces: p.Workspaces,
	}
}

// Record runs the validation chain in a fixed order so callers get a stable
// error for each failure mode: quantity, event type, tool existence, global
// enablement, workspace assignment, per-workspace enablement, then rate
// resolution. The resolved rate is written onto the event as a snapshot.
func (s *Service) Record(ctx context.Context, req usagedomain.RecordRequest) (*usagedomain.UsageEvent, error) {
	if !req.Quantity.IsPositive() {
		return nil, usagedomain.ErrInvalidQuantity
	}
	if strings.TrimSpace(req.EventType) == "" {
		return nil, usagedomain.ErrInvalidEventType
	}

	tool, err := s.tools.GetBySlug(ctx, req.ToolSlug)
	if err != nil {
		if errors.Is(err, tooldomain.ErrNotFound) || errors.Is(err, tooldomain.ErrInvalidSlug) {
			return nil, usagedomain.ErrToolNotFound
		}
		return nil, err
	}
	if !tool.IsEnabled {
		return nil, usagedomain.ErrToolDisabled
	}

	link, err := s.tools.GetWorkspaceLink(ctx, req.WorkspaceID, tool.ID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, usagedomain.ErrToolNotAssigned
	}
	if !link.IsEnabled {
		return nil, usagedomain.ErrToolDisabledForWorkspace
	}

	cfg := pricing.Resolve(tool.BillingConfig, link.PricingOverride)
	if !cfg.IsMetered() {
		return nil, usagedomain.ErrRateNotConfigured
	}

	now := s.clock.Now()
	event := &usagedomain.UsageEvent{
		ID:               s.genID.Generate(),
		WorkspaceID:      req.WorkspaceID,
		UserID:           req.UserID,
		ToolID:           tool.ID,
		EventType:        strings.TrimSpace(req.EventType),
		Quantity:         req.Quantity,
		UnitCostSnapshot: cfg.Rate(),
		Metadata:         datatypes.JSONMap(req.Metadata),
		BillingPeriod:    period.FromTime(now).String(),
		Billed:           false,
		CreatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return nil, err
	}

	s.log.Info("usage event recorded",
		zap.Int64("workspace_id", int64(event.WorkspaceID)),
		zap.String("tool_slug", tool.Slug),
		zap.String("quantity", event.Quantity.String()),
		zap.String("billing_period", event.BillingPeriod),
	)
	return event, nil
}

func (s *Service) Aggregate(ctx context.Context, ym period.YearMonth, workspaceID snowflake.ID) ([]usagedomain.UsageAggregate, error) {
	events, err := s.repo.FindUnbilled(ctx, s.db, ym.String(), workspaceID)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		workspaceID snowflake.ID
		toolID      snowflake.ID
	}
	groups := make(map[groupKey]*usagedomain.UsageAggregate)
	var order []groupKey
	for i := range events {
		ev := &events[i]
		key := groupKey{ev.WorkspaceID, ev.ToolID}
		agg, ok := groups[key]
		if !ok {
			agg = &usagedomain.UsageAggregate{
				WorkspaceID:   ev.WorkspaceID,
				ToolID:        ev.ToolID,
				TotalQuantity: decimal.Zero,
				TotalCost:     decimal.Zero,
				BillingPeriod: ym.String(),
			}
			groups[key] = agg
			order = append(order, key)
		}
		agg.TotalQuantity = agg.TotalQuantity.Add(ev.Quantity)
		agg.TotalCost = agg.TotalCost.Add(ev.Cost())
		agg.EventCount++
	}

	result := make([]usagedomain.UsageAggregate, 0, len(order))
	for _, key := range order {
		agg := groups[key]
		s.enrich(ctx, agg)
		result = append(result, *agg)
	}
	return result, nil
}

// enrich fills display names for an aggregate. Lookups are best effort: a
// missing workspace or tool row degrades to placeholder names instead of
// failing the whole aggregation.
func (s *Service) enrich(ctx context.Context, agg *usagedomain.UsageAggregate) {
	ws, err := s.workspaces.GetByID(ctx, agg.WorkspaceID)
	if err == nil && ws != nil {
		agg.WorkspaceName = ws.Name
	} else {
		agg.WorkspaceName = "Unknown"
	}

	tool, err := s.tools.GetByID(ctx, agg.ToolID)
	if err == nil && tool != nil {
		agg.ToolSlug = tool.Slug
		agg.ToolName = tool.Name
	} else {
		agg.ToolSlug = "unknown"
		agg.ToolName = "Unknown Tool"
	}
}

func (s *Service) MarkBilled(ctx context.Context, ym period.YearMonth, workspaceID, toolID snowflake.ID) (int64, error) {
	affected, err := s.repo.MarkBilled(ctx, s.db, ym.String(), workspaceID, toolID)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.log.Info("usage events marked billed",
			zap.String("billing_period", ym.String()),
			zap.Int64("workspace_id", int64(workspaceID)),
			zap.Int64("tool_id", int64(toolID)),
			zap.Int64("events", affected),
		)
	}
	return affected, nil
}
