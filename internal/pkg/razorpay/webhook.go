package razorpay

import (
	"encoding/json"
	"fmt"
)

// Webhook event names handled by the dispatcher.
const (
	EventPaymentCaptured       = "payment.captured"
	EventPaymentFailed         = "payment.failed"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// WebhookEvent is the envelope Razorpay posts to webhook endpoints.
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

type WebhookPayload struct {
	Payment      *PaymentWrapper      `json:"payment,omitempty"`
	Subscription *SubscriptionWrapper `json:"subscription,omitempty"`
}

type PaymentWrapper struct {
	Entity Payment `json:"entity"`
}

type SubscriptionWrapper struct {
	Entity Subscription `json:"entity"`
}

type Payment struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorReason    string `json:"error_reason,omitempty"`
}

type Subscription struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
	PaidCount    int    `json:"paid_count"`
}

// ParseWebhookEvent decodes an already verified webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook event: %w", err)
	}
	return &event, nil
}
