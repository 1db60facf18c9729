package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Tool, error)
	List(ctx context.Context) ([]Tool, error)
	GetBySlug(ctx context.Context, slug string) (*Tool, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Tool, error)
	// GetWorkspaceLink returns the workspace-tool link, or nil when the tool
	// has not been assigned to the workspace.
	GetWorkspaceLink(ctx context.Context, workspaceID, toolID snowflake.ID) (*WorkspaceTool, error)
	Assign(ctx context.Context, req AssignRequest) (*WorkspaceTool, error)
}

type CreateRequest struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	ToolType      string `json:"tool_type"`
	BillingConfig []byte `json:"billing_config"`
	Enabled       *bool  `json:"enabled"`
}

type AssignRequest struct {
	WorkspaceID     snowflake.ID
	ToolID          snowflake.ID
	PricingOverride []byte
	Enabled         *bool
}

var (
	ErrInvalidSlug = errors.New("invalid_slug")
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("tool_not_found")
	ErrDuplicate   = errors.New("tool_exists")
)
