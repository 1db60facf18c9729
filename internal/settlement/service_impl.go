package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	"github.com/lgltools/platform/internal/clock"
	"github.com/lgltools/platform/internal/providers/stripe"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Policy tells the dispatcher how to settle: which gateway customer pays,
// and whether collection is automatic or by emailed invoice.
type Policy struct {
	CustomerID         string
	PaymentMethodID    string
	CollectionMethod   workspacedomain.CollectionMethod
	DaysUntilDue       int
	PaymentMethodTypes []string
}

// PolicyForClient derives the default auto-charge policy from a billing
// client's stored gateway identifiers.
func PolicyForClient(client *workspacedomain.BillingClient) Policy {
	policy := Policy{
		CollectionMethod:   workspacedomain.CollectionChargeAutomatically,
		DaysUntilDue:       30,
		PaymentMethodTypes: []string{"card"},
	}
	if client.StripeCustomerID != nil {
		policy.CustomerID = *client.StripeCustomerID
	}
	if client.StripePaymentMethodID != nil {
		policy.PaymentMethodID = *client.StripePaymentMethodID
	}
	return policy
}

// Result is what one dispatch attempt produced. FailureReason is set only
// for OutcomeFailed; Invoice only for Paid and Invoiced.
type Result struct {
	Outcome       Outcome
	Invoice       *stripe.Invoice
	FailureReason string
}

type Service interface {
	// Dispatch claims a pending charge and runs it through the settlement
	// branch the policy selects. Gateway failures are recorded on the charge
	// and reported as OutcomeFailed, not as an error; errors are reserved
	// for guard and persistence problems.
	Dispatch(ctx context.Context, chargeID snowflake.ID, policy Policy) (Result, error)
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Charges chargedomain.Service
	Gateway stripe.Gateway
}

type dispatcher struct {
	log     *zap.Logger
	clock   clock.Clock
	charges chargedomain.Service
	gateway stripe.Gateway
}

func New(p Params) Service {
	return &dispatcher{
		log:     p.Log.Named("settlement.service"),
		clock:   p.Clock,
		charges: p.Charges,
		gateway: p.Gateway,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, chargeID snowflake.ID, policy Policy) (Result, error) {
	charge, err := d.charges.GetByID(ctx, chargeID)
	if err != nil {
		return Result{}, err
	}

	// Preconditions run before the charge is claimed so deferrals leave it
	// pending and re-dispatchable.
	if policy.CustomerID == "" {
		d.log.Warn("settlement deferred, no gateway customer",
			zap.Int64("charge_id", int64(charge.ID)),
			zap.Int64("billing_client_id", int64(charge.BillingClientID)),
		)
		return Result{Outcome: OutcomeDeferredManualReview}, nil
	}
	auto := policy.CollectionMethod != workspacedomain.CollectionSendInvoice
	if auto && policy.PaymentMethodID == "" {
		d.log.Info("settlement deferred, no saved payment method",
			zap.Int64("charge_id", int64(charge.ID)),
		)
		return Result{Outcome: OutcomeDeferredNoPaymentMethod}, nil
	}

	claimed, err := d.charges.Begin(ctx, charge.ID)
	if err != nil {
		return Result{}, err
	}

	metadata := map[string]string{
		"billing_client_id":   claimed.BillingClientID.String(),
		"scheduled_charge_id": claimed.ID.String(),
		"created_by":          claimed.CreatedBy,
	}

	if _, err := d.gateway.CreateInvoiceItem(ctx, stripe.InvoiceItemParams{
		CustomerID:  policy.CustomerID,
		Amount:      claimed.Amount,
		Currency:    claimed.Currency,
		Description: claimed.Description,
		Metadata:    metadata,
	}); err != nil {
		return d.recordFailure(ctx, claimed, fmt.Sprintf("create invoice item: %v", err))
	}

	invoiceParams := stripe.InvoiceParams{
		CustomerID: policy.CustomerID,
		Metadata:   metadata,
	}
	if auto {
		invoiceParams.CollectionMethod = "charge_automatically"
		invoiceParams.AutoAdvance = true
		invoiceParams.DefaultPaymentMethod = policy.PaymentMethodID
	} else {
		invoiceParams.CollectionMethod = "send_invoice"
		invoiceParams.AutoAdvance = false
		invoiceParams.DaysUntilDue = policy.DaysUntilDue
		invoiceParams.PaymentMethodTypes = policy.PaymentMethodTypes
	}

	invoice, err := d.gateway.CreateInvoice(ctx, invoiceParams)
	if err != nil {
		return d.recordFailure(ctx, claimed, fmt.Sprintf("create invoice: %v", err))
	}

	finalized, err := d.gateway.FinalizeInvoice(ctx, invoice.ID)
	if err != nil {
		return d.recordFailure(ctx, claimed, fmt.Sprintf("finalize invoice: %v", err))
	}

	var settled *stripe.Invoice
	var outcome Outcome
	if auto {
		settled, err = d.gateway.PayInvoice(ctx, finalized.ID)
		outcome = OutcomePaid
	} else {
		settled, err = d.gateway.SendInvoice(ctx, finalized.ID)
		outcome = OutcomeInvoiced
	}
	if err != nil {
		return d.recordFailure(ctx, claimed, fmt.Sprintf("settle invoice: %v", err))
	}

	if err := d.charges.MarkSucceeded(ctx, claimed.ID, chargedomain.SucceededResult{
		InvoiceID:       settled.ID,
		PaymentIntentID: settled.PaymentIntent,
		InvoiceURL:      settled.HostedInvoiceURL,
		InvoicePDF:      settled.InvoicePDF,
	}, d.clock.Now()); err != nil {
		return Result{}, err
	}

	d.log.Info("charge settled",
		zap.Int64("charge_id", int64(claimed.ID)),
		zap.String("outcome", string(outcome)),
		zap.String("stripe_invoice_id", settled.ID),
	)
	return Result{Outcome: outcome, Invoice: settled}, nil
}

func (d *dispatcher) recordFailure(ctx context.Context, charge *chargedomain.ScheduledCharge, reason string) (Result, error) {
	if err := d.charges.MarkFailed(ctx, charge.ID, reason, d.clock.Now()); err != nil {
		// A charge that cannot even record its failure is stuck in
		// processing; surface both problems.
		if !errors.Is(err, chargedomain.ErrNotProcessing) {
			return Result{}, err
		}
	}
	return Result{Outcome: OutcomeFailed, FailureReason: reason}, nil
}
