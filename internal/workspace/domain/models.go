// Package domain contains workspace and billing-client models. The billing
// pipeline treats these as read-only configuration: the workspace's type and
// collection method decide which settlement path applies.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type WorkspaceType string

const (
	WorkspaceTypeSelfServe WorkspaceType = "self_serve"
	WorkspaceTypeManaged   WorkspaceType = "managed"
)

type WorkspaceStatus string

const (
	WorkspaceStatusActive    WorkspaceStatus = "active"
	WorkspaceStatusSuspended WorkspaceStatus = "suspended"
	WorkspaceStatusClosed    WorkspaceStatus = "closed"
)

// CollectionMethod is the per-workspace settlement policy. It governs every
// charge the workspace incurs uniformly at dispatch time, not per-charge.
type CollectionMethod string

const (
	CollectionChargeAutomatically CollectionMethod = "charge_automatically"
	CollectionSendInvoice         CollectionMethod = "send_invoice"
)

type Workspace struct {
	ID                    snowflake.ID      `json:"id" gorm:"primaryKey"`
	Name                  string            `json:"name" gorm:"type:text;not null"`
	Type                  WorkspaceType     `json:"type" gorm:"type:text;not null;default:'self_serve'"`
	BillingClientID       *snowflake.ID     `json:"billing_client_id" gorm:"index"`
	StripeCustomerID      *string           `json:"stripe_customer_id" gorm:"type:text"`
	StripePaymentMethodID *string           `json:"stripe_payment_method_id" gorm:"type:text"`
	Status                WorkspaceStatus   `json:"status" gorm:"type:text;not null;default:'active'"`
	CollectionMethod      CollectionMethod  `json:"collection_method" gorm:"type:text;not null;default:'charge_automatically'"`
	AllowedPaymentMethods datatypes.JSON    `json:"allowed_payment_methods" gorm:"type:jsonb"`
	DaysUntilDue          int               `json:"days_until_due" gorm:"not null;default:30"`
	ContactEmail          *string           `json:"contact_email" gorm:"type:text"`
	CreatedAt             time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Workspace) TableName() string { return "workspaces" }

type BillingClientStatus string

const (
	BillingClientStatusPendingSetup BillingClientStatus = "pending_setup"
	BillingClientStatusActive       BillingClientStatus = "active"
	BillingClientStatusPaused       BillingClientStatus = "paused"
	BillingClientStatusClosed       BillingClientStatus = "closed"
)

// BillingClient is the payer an admin provisions for managed workspaces and
// one-off scheduled charges.
type BillingClient struct {
	ID                    snowflake.ID        `json:"id" gorm:"primaryKey"`
	UserID                *string             `json:"user_id" gorm:"type:text"`
	Name                  string              `json:"name" gorm:"type:text;not null"`
	Notes                 *string             `json:"notes" gorm:"type:text"`
	StripeCustomerID      *string             `json:"stripe_customer_id" gorm:"type:text"`
	StripePaymentMethodID *string             `json:"stripe_payment_method_id" gorm:"type:text"`
	Status                BillingClientStatus `json:"status" gorm:"type:text;not null;default:'pending_setup'"`
	CreatedAt             time.Time           `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time           `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingClient) TableName() string { return "billing_clients" }

// PaymentMethodTypes decodes the allowed payment method list, defaulting to
// card when nothing is configured.
func (w *Workspace) PaymentMethodTypes() []string {
	if len(w.AllowedPaymentMethods) == 0 {
		return []string{"card"}
	}
	var methods []string
	if err := decodeJSONStrings(w.AllowedPaymentMethods, &methods); err != nil || len(methods) == 0 {
		return []string{"card"}
	}
	return methods
}
