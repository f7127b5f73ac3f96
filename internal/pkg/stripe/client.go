// Package stripe wraps the stripe-go SDK calls used by the checkout and webhook flows.
package stripe

import (
	"context"
	"fmt"

	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Metadata keys written on checkout sessions and subscriptions.
const (
	MetadataPlanID        = "planId"
	MetadataBillingPeriod = "billingPeriod"
	MetadataWalletAddress = "walletAddress"
)

type CheckoutParams struct {
	PriceID       string
	PlanID        string
	BillingPeriod string
	WalletAddress string
	SuccessURL    string
	CancelURL     string
}

// Client creates hosted checkout sessions.
type Client interface {
	CreateCheckoutSession(ctx context.Context, p *CheckoutParams) (string, error)
}

type stripeClient struct {
	api *client.API
}

func NewClient(secretKey string) Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeClient{api: api}
}

func (c *stripeClient) CreateCheckoutSession(ctx context.Context, p *CheckoutParams) (string, error) {
	metadata := map[string]string{
		MetadataPlanID:        p.PlanID,
		MetadataBillingPeriod: p.BillingPeriod,
		MetadataWalletAddress: p.WalletAddress,
	}

	params := &stripego.CheckoutSessionParams{
		Mode:               stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				Price:    stripego.String(p.PriceID),
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL:               stripego.String(p.SuccessURL),
		CancelURL:                stripego.String(p.CancelURL),
		AllowPromotionCodes:      stripego.Bool(true),
		BillingAddressCollection: stripego.String("required"),
		SubscriptionData: &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	return sess.ID, nil
}

// MetadataComplete reports whether the plan, billing period and wallet keys are all set.
func MetadataComplete(md map[string]string) bool {
	return md[MetadataPlanID] != "" && md[MetadataBillingPeriod] != "" && md[MetadataWalletAddress] != ""
}
