package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
	"github.com/qs3c/ainexus_server/internal/pkg/razorpay"
	"github.com/qs3c/ainexus_server/internal/pkg/stripe"
	"github.com/qs3c/ainexus_server/internal/repository"
	"github.com/qs3c/ainexus_server/internal/testutil"
)

const (
	testRazorpaySecret = "rzp_test_secret"
	testWebhookSecret  = "whsec_test_secret"
)

// fakeStripe 记录最近一次 checkout 参数
type fakeStripe struct {
	sessionID string
	err       error
	last      *stripe.CheckoutParams
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, p *stripe.CheckoutParams) (string, error) {
	f.last = p
	if f.err != nil {
		return "", f.err
	}
	return f.sessionID, nil
}

type fakeRazorpay struct {
	orderID string
	err     error
	last    *razorpay.OrderRequest
}

func (f *fakeRazorpay) CreateOrder(ctx context.Context, req *razorpay.OrderRequest) (*razorpay.Order, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &razorpay.Order{
		ID:       f.orderID,
		Entity:   "order",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeRazorpay) KeyID() string { return "rzp_test_key" }

// recordingNotifier 收集发布的订阅事件
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*pubsub.SubscriptionMessage
	err  error
}

func (n *recordingNotifier) PublishSubscription(ctx context.Context, msg *pubsub.SubscriptionMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Type)
	}
	return out
}

var errBoom = errors.New("boom")

func testConfig() *config.Config {
	return &config.Config{
		Stripe: config.StripeConfig{
			WebhookSecret: testWebhookSecret,
			SuccessURL:    "https://ainexus.dev/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:     "https://ainexus.dev/pricing",
		},
		Razorpay: config.RazorpayConfig{
			KeyID:         "rzp_test_key",
			KeySecret:     testRazorpaySecret,
			WebhookSecret: testWebhookSecret,
			Currency:      "INR",
		},
	}
}

type repos struct {
	db       *gorm.DB
	subs     *repository.SubscriptionRepository
	sessions *repository.SessionRepository
	waitlist *repository.WaitlistRepository
	catalog  *plan.Catalog
}

func setupRepos(t *testing.T) *repos {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return &repos{
		db:       db,
		subs:     repository.NewSubscriptionRepository(db),
		sessions: repository.NewSessionRepository(db),
		waitlist: repository.NewWaitlistRepository(db),
		catalog:  plan.Default(),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
