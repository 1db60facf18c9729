package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tooldomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tool *tooldomain.Tool) error {
	return db.WithContext(ctx).Create(tool).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tooldomain.Tool, error) {
	var tool tooldomain.Tool
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, tool_type, billing_config, is_enabled, created_at, updated_at
		 FROM tools WHERE id = ?`,
		id,
	).Scan(&tool).Error
	if err != nil {
		return nil, err
	}
	if tool.ID == 0 {
		return nil, nil
	}
	return &tool, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*tooldomain.Tool, error) {
	var tool tooldomain.Tool
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, tool_type, billing_config, is_enabled, created_at, updated_at
		 FROM tools WHERE slug = ?`,
		slug,
	).Scan(&tool).Error
	if err != nil {
		return nil, err
	}
	if tool.ID == 0 {
		return nil, nil
	}
	return &tool, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tooldomain.Tool, error) {
	var tools []tooldomain.Tool
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, tool_type, billing_config, is_enabled, created_at, updated_at
		 FROM tools ORDER BY created_at ASC`,
	).Scan(&tools).Error
	if err != nil {
		return nil, err
	}
	return tools, nil
}

func (r *repo) InsertLink(ctx context.Context, db *gorm.DB, link *tooldomain.WorkspaceTool) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *repo) FindLink(ctx context.Context, db *gorm.DB, workspaceID, toolID snowflake.ID) (*tooldomain.WorkspaceTool, error) {
	var link tooldomain.WorkspaceTool
	err := db.WithContext(ctx).Raw(
		`SELECT id, workspace_id, tool_id, is_enabled, pricing_override, created_at
		 FROM workspace_tools WHERE workspace_id = ? AND tool_id = ?`,
		workspaceID,
		toolID,
	).Scan(&link).Error
	if err != nil {
		return nil, err
	}
	if link.ID == 0 {
		return nil, nil
	}
	return &link, nil
}
