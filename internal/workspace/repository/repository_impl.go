package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() workspacedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, workspace *workspacedomain.Workspace) error {
	return db.WithContext(ctx).Create(workspace).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*workspacedomain.Workspace, error) {
	var workspace workspacedomain.Workspace
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, type, billing_client_id, stripe_customer_id, stripe_payment_method_id,
		        status, collection_method, allowed_payment_methods, days_until_due, contact_email,
		        created_at, updated_at
		 FROM workspaces WHERE id = ?`,
		id,
	).Scan(&workspace).Error
	if err != nil {
		return nil, err
	}
	if workspace.ID == 0 {
		return nil, nil
	}
	return &workspace, nil
}

func (r *repo) InsertClient(ctx context.Context, db *gorm.DB, client *workspacedomain.BillingClient) error {
	return db.WithContext(ctx).Create(client).Error
}

func (r *repo) FindClientByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*workspacedomain.BillingClient, error) {
	var client workspacedomain.BillingClient
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, notes, stripe_customer_id, stripe_payment_method_id,
		        status, created_at, updated_at
		 FROM billing_clients WHERE id = ?`,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}
