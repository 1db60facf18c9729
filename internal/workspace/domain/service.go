package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Workspace, error)
	GetBillingClient(ctx context.Context, id snowflake.ID) (*BillingClient, error)
	Create(ctx context.Context, req CreateWorkspaceRequest) (*Workspace, error)
	CreateBillingClient(ctx context.Context, req CreateBillingClientRequest) (*BillingClient, error)
}

type CreateWorkspaceRequest struct {
	Name             string           `json:"name"`
	Type             WorkspaceType    `json:"type"`
	CollectionMethod CollectionMethod `json:"collection_method"`
	DaysUntilDue     int              `json:"days_until_due"`
	BillingClientID  *snowflake.ID    `json:"billing_client_id"`
	ContactEmail     *string          `json:"contact_email"`
}

type CreateBillingClientRequest struct {
	Name   string  `json:"name"`
	UserID *string `json:"user_id"`
	Notes  *string `json:"notes"`
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidType    = errors.New("invalid_workspace_type")
	ErrNotFound       = errors.New("workspace_not_found")
	ErrClientNotFound = errors.New("billing_client_not_found")
)
