package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, workspace *Workspace) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Workspace, error)
	InsertClient(ctx context.Context, db *gorm.DB, client *BillingClient) error
	FindClientByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillingClient, error)
}
