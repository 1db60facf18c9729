package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/lgltools/platform/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *usagedomain.UsageEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) FindUnbilled(ctx context.Context, db *gorm.DB, billingPeriod string, workspaceID snowflake.ID) ([]usagedomain.UsageEvent, error) {
	var events []usagedomain.UsageEvent
	query := `SELECT id, workspace_id, user_id, tool_id, event_type, quantity,
	          unit_cost_snapshot, metadata, billing_period, billed, created_at
	          FROM usage_events WHERE billing_period = ? AND billed = FALSE`
	args := []interface{}{billingPeriod}
	if workspaceID != 0 {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY id ASC`
	err := db.WithContext(ctx).Raw(query, args...).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkBilled(ctx context.Context, db *gorm.DB, billingPeriod string, workspaceID, toolID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE usage_events SET billed = TRUE
		 WHERE billing_period = ? AND workspace_id = ? AND tool_id = ? AND billed = FALSE`,
		billingPeriod,
		workspaceID,
		toolID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
