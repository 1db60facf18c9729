// Package settlement turns a claimed scheduled charge into money via the
// payment gateway. It owns the branch between charging a saved payment
// method and emailing a hosted invoice.
package settlement

// Outcome is the explicit result of one dispatch attempt. Deferred outcomes
// mean no state was changed and the charge is still pending.
type Outcome string

const (
	// OutcomePaid means the auto-charge branch collected the money.
	OutcomePaid Outcome = "paid"
	// OutcomeInvoiced means the send-invoice branch delivered a hosted
	// invoice. It says nothing about whether the invoice gets paid.
	OutcomeInvoiced Outcome = "invoiced"
	// OutcomeDeferredNoPaymentMethod means the auto-charge branch had no
	// saved payment method to bill. The charge stays pending.
	OutcomeDeferredNoPaymentMethod Outcome = "deferred_no_payment_method"
	// OutcomeDeferredManualReview means the payer has no gateway customer
	// at all. An operator has to finish the billing setup first.
	OutcomeDeferredManualReview Outcome = "deferred_manual_review"
	// OutcomeFailed means a gateway call failed after the charge was
	// claimed. The charge is terminal with a recorded failure reason.
	OutcomeFailed Outcome = "failed"
)
