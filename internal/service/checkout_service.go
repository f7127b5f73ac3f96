package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/metrics"
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/razorpay"
	"github.com/qs3c/ainexus_server/internal/pkg/stripe"
	"github.com/qs3c/ainexus_server/internal/repository"
)

var (
	ErrMissingFields  = errors.New("Missing required fields")
	ErrInvalidPlan    = errors.New("Invalid plan details")
	ErrAmountMismatch = errors.New("Amount does not match plan price")
	ErrCheckoutFailed = errors.New("Failed to create checkout session")
	ErrOrderFailed    = errors.New("Failed to create payment order")
)

type CheckoutService struct {
	sessionRepo *repository.SessionRepository
	catalog     *plan.Catalog
	stripe      stripe.Client
	razorpay    razorpay.Client
	cfg         *config.Config
	metrics     metrics.BillingMetrics
}

func NewCheckoutService(
	sessionRepo *repository.SessionRepository,
	catalog *plan.Catalog,
	stripeClient stripe.Client,
	razorpayClient razorpay.Client,
	cfg *config.Config,
	billingMetrics metrics.BillingMetrics,
) *CheckoutService {
	if billingMetrics == nil {
		billingMetrics = metrics.Noop()
	}
	return &CheckoutService{
		sessionRepo: sessionRepo,
		catalog:     catalog,
		stripe:      stripeClient,
		razorpay:    razorpayClient,
		cfg:         cfg,
		metrics:     billingMetrics,
	}
}

// CreateStripeCheckout 创建 Stripe 订阅模式的 Checkout 会话
func (s *CheckoutService) CreateStripeCheckout(ctx context.Context, req *dto.StripeCheckoutRequest) (*dto.StripeCheckoutResponse, error) {
	wallet := model.NormalizeWallet(req.WalletAddress)
	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" || req.PlanID == "" || req.BillingPeriod == "" || wallet == "" {
		return nil, ErrMissingFields
	}

	details := s.catalog.Lookup(req.PlanID, req.BillingPeriod)
	if !details.Valid() {
		return nil, ErrInvalidPlan
	}
	// 配额按 metadata 中的套餐发放，price 必须与套餐一致
	if details.StripePriceID != priceID {
		return nil, ErrInvalidPlan
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.cfg.Stripe.SuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.cfg.Stripe.CancelURL
	}

	sessionID, err := s.stripe.CreateCheckoutSession(ctx, &stripe.CheckoutParams{
		PriceID:       priceID,
		PlanID:        details.PlanID,
		BillingPeriod: details.BillingPeriod,
		WalletAddress: wallet,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		log.Printf("Stripe checkout failed for wallet %s plan %s: %v", wallet, details.Key(), err)
		s.metrics.IncCheckoutFailed(model.ProviderStripe)
		return nil, ErrCheckoutFailed
	}

	s.recordSession(&model.SubscriptionSession{
		SessionID:     sessionID,
		Provider:      model.ProviderStripe,
		WalletAddress: wallet,
		PlanID:        details.PlanID,
		BillingPeriod: details.BillingPeriod,
		PriceID:       priceID,
		Status:        model.SessionStatusPending,
	})
	s.metrics.IncCheckoutCreated(model.ProviderStripe)

	return &dto.StripeCheckoutResponse{SessionID: sessionID}, nil
}

// CreateRazorpayOrder 创建 Razorpay 订单，金额必须等于套餐价格
func (s *CheckoutService) CreateRazorpayOrder(ctx context.Context, req *dto.RazorpayOrderRequest) (*dto.RazorpayOrderResponse, error) {
	wallet := model.NormalizeWallet(req.WalletAddress)
	if req.PlanID == "" || req.BillingPeriod == "" || req.Amount <= 0 || wallet == "" {
		return nil, ErrMissingFields
	}

	details := s.catalog.Lookup(req.PlanID, req.BillingPeriod)
	if !details.Valid() {
		return nil, ErrInvalidPlan
	}
	if req.Amount != float64(details.Price) {
		return nil, ErrAmountMismatch
	}

	order, err := s.razorpay.CreateOrder(ctx, &razorpay.OrderRequest{
		Amount:   details.Price * 100,
		Currency: s.currency(),
		Receipt:  razorpay.NewReceipt(),
		Notes: map[string]string{
			"planId":        details.PlanID,
			"billingPeriod": details.BillingPeriod,
			"walletAddress": wallet,
			"userEmail":     req.UserEmail,
			"userName":      req.UserName,
		},
	})
	if err != nil {
		log.Printf("Razorpay order failed for wallet %s plan %s: %v", wallet, details.Key(), err)
		s.metrics.IncCheckoutFailed(model.ProviderRazorpay)
		return nil, ErrOrderFailed
	}

	s.recordSession(&model.SubscriptionSession{
		SessionID:       order.ID,
		Provider:        model.ProviderRazorpay,
		WalletAddress:   wallet,
		PlanID:          details.PlanID,
		BillingPeriod:   details.BillingPeriod,
		PriceID:         details.Key(),
		Status:          model.SessionStatusPending,
		RazorpayOrderID: strPtr(order.ID),
	})
	s.metrics.IncCheckoutCreated(model.ProviderRazorpay)

	return &dto.RazorpayOrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Key:      s.razorpay.KeyID(),
	}, nil
}

// recordSession 本地会话记录失败不影响支付流程
func (s *CheckoutService) recordSession(session *model.SubscriptionSession) {
	if err := s.sessionRepo.Create(session); err != nil {
		log.Printf("Failed to record %s session %s: %v", session.Provider, session.SessionID, err)
	}
}

func (s *CheckoutService) currency() string {
	if s.cfg.Razorpay.Currency != "" {
		return s.cfg.Razorpay.Currency
	}
	return "INR"
}
