package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/pkg/dedup"
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/queue"
	"github.com/qs3c/ainexus_server/internal/pkg/razorpay"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
	"github.com/qs3c/ainexus_server/internal/pkg/signature"
	"github.com/qs3c/ainexus_server/internal/pkg/stripe"
	"github.com/qs3c/ainexus_server/internal/repository"
	"github.com/qs3c/ainexus_server/internal/service"
	"github.com/qs3c/ainexus_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testKeySecret     = "rzp_handler_secret"
	testWebhookSecret = "whsec_handler_secret"
)

type fakeStripe struct {
	err error
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, p *stripe.CheckoutParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "cs_test_handler", nil
}

type fakeRazorpay struct {
	err error
}

func (f *fakeRazorpay) CreateOrder(ctx context.Context, req *razorpay.OrderRequest) (*razorpay.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &razorpay.Order{ID: "order_handler", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (f *fakeRazorpay) KeyID() string { return "rzp_handler_key" }

// testServer 组装真实的 service/repository，外部支付渠道用 fake
type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	stripe   *fakeStripe
	razorpay *fakeRazorpay
	queue    *queue.Queue
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
		testutil.CleanupTestDB(t, db)
	})

	cfg := &config.Config{
		Stripe: config.StripeConfig{
			WebhookSecret: testWebhookSecret,
			SuccessURL:    "https://ainexus.dev/success",
			CancelURL:     "https://ainexus.dev/pricing",
		},
		Razorpay: config.RazorpayConfig{
			KeyID:         "rzp_handler_key",
			KeySecret:     testKeySecret,
			WebhookSecret: testWebhookSecret,
			Currency:      "INR",
		},
	}

	catalog := plan.Default()
	subRepo := repository.NewSubscriptionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	emailQueue := queue.NewQueue(rdb, "waitlist_emails_handler")

	fs := &fakeStripe{}
	fr := &fakeRazorpay{}

	checkoutService := service.NewCheckoutService(sessionRepo, catalog, fs, fr, cfg, nil)
	paymentService := service.NewPaymentService(subRepo, sessionRepo, catalog, signature.NewHMAC(testKeySecret), nil, nil)
	webhookService := service.NewWebhookService(subRepo, sessionRepo, catalog, testWebhookSecret,
		signature.NewHMAC(testWebhookSecret), dedup.NewStore(rdb, time.Hour), nil, nil)
	quotaService := service.NewQuotaService(subRepo, nil, nil)
	waitlistService := service.NewWaitlistService(waitlistRepo, emailQueue)

	checkout := NewCheckoutHandler(checkoutService)
	payment := NewPaymentHandler(paymentService)
	webhook := NewWebhookHandler(webhookService)
	subscription := NewSubscriptionHandler(quotaService)
	plans := NewPlansHandler(catalog, "INR")
	waitlist := NewWaitlistHandler(waitlistService)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	v1.POST("/stripe/create-checkout", checkout.CreateStripeCheckout)
	v1.POST("/stripe/webhook", webhook.Stripe)
	v1.POST("/razorpay/create-order", checkout.CreateRazorpayOrder)
	v1.POST("/razorpay/verify-payment", payment.VerifyRazorpayPayment)
	v1.POST("/razorpay/webhook", webhook.Razorpay)
	v1.GET("/subscription/status", subscription.Status)
	v1.POST("/subscription/upload", subscription.Upload)
	v1.GET("/plans", plans.List)
	v1.POST("/waitlist", waitlist.Join)
	v1.GET("/waitlist/stats", waitlist.Stats)

	return &testServer{engine: engine, db: db, stripe: fs, razorpay: fr, queue: emailQueue}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performRaw(r http.Handler, path string, payload []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) string {
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
