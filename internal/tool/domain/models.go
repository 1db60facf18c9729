// Package domain contains the tool catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tool is a catalog entry for one live-production tool (timer, prompter,
// vog, live-stream). BillingConfig is a loosely-typed blob carrying the
// global metered rate; the pricing package interprets it.
type Tool struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	Slug          string         `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Name          string         `json:"name" gorm:"type:text;not null"`
	ToolType      string         `json:"tool_type" gorm:"type:text;not null"`
	BillingConfig datatypes.JSON `json:"billing_config" gorm:"type:jsonb"`
	IsEnabled     bool           `json:"is_enabled" gorm:"not null;default:true"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tool) TableName() string { return "tools" }

// WorkspaceTool links a tool to a workspace. PricingOverride, when present,
// replaces the tool's global rate for that workspace.
type WorkspaceTool struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	WorkspaceID     snowflake.ID   `json:"workspace_id" gorm:"not null;index:ux_workspace_tools,priority:1"`
	ToolID          snowflake.ID   `json:"tool_id" gorm:"not null;index:ux_workspace_tools,priority:2"`
	IsEnabled       bool           `json:"is_enabled" gorm:"not null;default:true"`
	PricingOverride datatypes.JSON `json:"pricing_override" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (WorkspaceTool) TableName() string { return "workspace_tools" }
