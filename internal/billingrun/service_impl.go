// Package billingrun drives the monthly settlement of metered usage. One run
// covers one completed billing period and is safe to re-trigger: already
// billed events never aggregate again.
package billingrun

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/lgltools/platform/internal/period"
	"github.com/lgltools/platform/internal/providers/stripe"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	usagedomain "github.com/lgltools/platform/internal/usage/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

// WorkspaceStatus classifies what the run did with one workspace's usage.
type WorkspaceStatus string

const (
	// StatusInvoiced means a consolidated invoice was issued and the usage
	// was marked billed.
	StatusInvoiced WorkspaceStatus = "invoiced"
	// StatusLoggedForReview means the usage cannot be auto-billed (managed
	// workspace, or no gateway customer). Events stay unbilled for an
	// operator to settle by hand.
	StatusLoggedForReview WorkspaceStatus = "logged_for_review"
	// StatusFailed means a gateway call failed. Events stay unbilled and
	// the next run retries them.
	StatusFailed WorkspaceStatus = "failed"
)

// WorkspaceResult is the per-workspace line of a run report.
type WorkspaceResult struct {
	WorkspaceID   snowflake.ID    `json:"workspace_id"`
	WorkspaceName string          `json:"workspace_name"`
	Status        WorkspaceStatus `json:"status"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	EventsBilled  int64           `json:"events_billed"`
	Error         string          `json:"error,omitempty"`
}

// RunResult is the full report of one billing run.
type RunResult struct {
	BillingPeriod string            `json:"billing_period"`
	Workspaces    []WorkspaceResult `json:"workspaces"`
	Invoiced      int               `json:"invoiced"`
	Reviewed      int               `json:"logged_for_review"`
	Failed        int               `json:"failed"`
}

type Service interface {
	// Run settles all unbilled usage for the given period. Per-workspace
	// failures are collected in the result, never aborting the batch.
	Run(ctx context.Context, ym period.YearMonth) (*RunResult, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Usage      usagedomain.Service
	Workspaces workspacedomain.Service
	Gateway    stripe.Gateway
}

type runner struct {
	log        *zap.Logger
	usage      usagedomain.Service
	workspaces workspacedomain.Service
	gateway    stripe.Gateway
}

func New(p Params) Service {
	return &runner{
		log:        p.Log.Named("billingrun.service"),
		usage:      p.Usage,
		workspaces: p.Workspaces,
		gateway:    p.Gateway,
	}
}

func (r *runner) Run(ctx context.Context, ym period.YearMonth) (*RunResult, error) {
	aggregates, err := r.usage.Aggregate(ctx, ym, 0)
	if err != nil {
		return nil, err
	}

	// Zero-cost groups are dropped up front: free usage never invoices.
	var billable []usagedomain.UsageAggregate
	for _, agg := range aggregates {
		if agg.TotalCost.IsPositive() {
			billable = append(billable, agg)
		}
	}

	byWorkspace := make(map[snowflake.ID][]usagedomain.UsageAggregate)
	var workspaceOrder []snowflake.ID
	for _, agg := range billable {
		if _, seen := byWorkspace[agg.WorkspaceID]; !seen {
			workspaceOrder = append(workspaceOrder, agg.WorkspaceID)
		}
		byWorkspace[agg.WorkspaceID] = append(byWorkspace[agg.WorkspaceID], agg)
	}

	result := &RunResult{BillingPeriod: ym.String()}
	for _, workspaceID := range workspaceOrder {
		line := r.settleWorkspace(ctx, ym, workspaceID, byWorkspace[workspaceID])
		result.Workspaces = append(result.Workspaces, line)
		switch line.Status {
		case StatusInvoiced:
			result.Invoiced++
		case StatusLoggedForReview:
			result.Reviewed++
		case StatusFailed:
			result.Failed++
		}
	}

	r.log.Info("billing run complete",
		zap.String("billing_period", ym.String()),
		zap.Int("invoiced", result.Invoiced),
		zap.Int("logged_for_review", result.Reviewed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *runner) settleWorkspace(ctx context.Context, ym period.YearMonth, workspaceID snowflake.ID, aggregates []usagedomain.UsageAggregate) WorkspaceResult {
	line := WorkspaceResult{
		WorkspaceID:   workspaceID,
		WorkspaceName: aggregates[0].WorkspaceName,
		TotalCost:     decimal.Zero,
	}
	for _, agg := range aggregates {
		line.TotalCost = line.TotalCost.Add(agg.TotalCost)
	}

	workspace, err := r.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		line.Status = StatusLoggedForReview
		line.Error = err.Error()
		return line
	}
	if workspace.Type != workspacedomain.WorkspaceTypeSelfServe ||
		workspace.StripeCustomerID == nil || *workspace.StripeCustomerID == "" {
		r.log.Info("usage logged for review",
			zap.Int64("workspace_id", int64(workspaceID)),
			zap.String("workspace_type", string(workspace.Type)),
			zap.String("total_cost", line.TotalCost.String()),
		)
		line.Status = StatusLoggedForReview
		return line
	}

	customerID := *workspace.StripeCustomerID
	metadata := map[string]string{
		"workspace_id":   workspaceID.String(),
		"billing_period": ym.String(),
	}

	for _, agg := range aggregates {
		description := fmt.Sprintf("%s usage for %s (%s x %s)",
			agg.ToolName, ym.String(), agg.TotalQuantity.String(), agg.TotalCost.Div(agg.TotalQuantity).String())
		if _, err := r.gateway.CreateInvoiceItem(ctx, stripe.InvoiceItemParams{
			CustomerID:  customerID,
			Amount:      costCents(agg.TotalCost),
			Currency:    "usd",
			Description: description,
			Metadata:    metadata,
		}); err != nil {
			line.Status = StatusFailed
			line.Error = fmt.Sprintf("create invoice item for %s: %v", agg.ToolSlug, err)
			return line
		}
	}

	invoiceParams := stripe.InvoiceParams{
		CustomerID:                  customerID,
		PendingInvoiceItemsBehavior: "include",
		Metadata:                    metadata,
	}
	if workspace.CollectionMethod == workspacedomain.CollectionSendInvoice {
		invoiceParams.CollectionMethod = "send_invoice"
		invoiceParams.DaysUntilDue = workspace.DaysUntilDue
		invoiceParams.PaymentMethodTypes = workspace.PaymentMethodTypes()
	} else {
		invoiceParams.CollectionMethod = "charge_automatically"
		invoiceParams.AutoAdvance = true
	}

	invoice, err := r.gateway.CreateInvoice(ctx, invoiceParams)
	if err != nil {
		line.Status = StatusFailed
		line.Error = fmt.Sprintf("create invoice: %v", err)
		return line
	}
	if _, err := r.gateway.FinalizeInvoice(ctx, invoice.ID); err != nil {
		line.Status = StatusFailed
		line.Error = fmt.Sprintf("finalize invoice: %v", err)
		return line
	}

	for _, agg := range aggregates {
		marked, err := r.usage.MarkBilled(ctx, ym, workspaceID, agg.ToolID)
		if err != nil {
			// The invoice exists but the ledger write failed. Report it
			// loudly; the next run would double-bill without intervention.
			line.Status = StatusFailed
			line.Error = fmt.Sprintf("mark billed for %s: %v", agg.ToolSlug, err)
			return line
		}
		line.EventsBilled += marked
	}

	line.Status = StatusInvoiced
	line.InvoiceID = invoice.ID
	return line
}

// costCents converts a decimal currency amount to the gateway's integer
// minor units, rounding half up.
func costCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
