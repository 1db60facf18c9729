package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tool *Tool) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tool, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Tool, error)
	List(ctx context.Context, db *gorm.DB) ([]Tool, error)
	InsertLink(ctx context.Context, db *gorm.DB, link *WorkspaceTool) error
	FindLink(ctx context.Context, db *gorm.DB, workspaceID, toolID snowflake.ID) (*WorkspaceTool, error)
}
