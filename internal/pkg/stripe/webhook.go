package stripe

import (
	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Event types handled by the dispatcher.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

const (
	BillingReasonSubscriptionCycle = "subscription_cycle"
	SignatureHeader                = "Stripe-Signature"
)

// ParseWebhook verifies the Stripe-Signature header against the raw payload and
// returns the decoded event. The account's API version may differ from the SDK's.
func ParseWebhook(payload []byte, sigHeader, secret string) (stripego.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
