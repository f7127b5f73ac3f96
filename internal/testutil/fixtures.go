package testutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/internal/model"
)

var walletSeq atomic.Int64

// TestWallet 生成唯一的测试钱包地址
func TestWallet() string {
	return fmt.Sprintf("0x%024x%016x", time.Now().UnixNano(), walletSeq.Add(1))
}

// TestSubscription 创建测试订阅，默认 professional/monthly，剩余 20 次
func TestSubscription(t *testing.T, db *gorm.DB, opts ...func(*model.DeveloperSubscription)) *model.DeveloperSubscription {
	t.Helper()

	now := time.Now()
	sub := &model.DeveloperSubscription{
		WalletAddress:      TestWallet(),
		PlanID:             "professional",
		BillingPeriod:      "monthly",
		Status:             model.SubscriptionStatusActive,
		UploadsRemaining:   20,
		UploadsTotal:       20,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithWallet 设置钱包地址
func WithWallet(wallet string) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.WalletAddress = wallet
	}
}

// WithStatus 设置订阅状态
func WithStatus(status string) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.Status = status
	}
}

// WithUploads 设置剩余/总配额
func WithUploads(remaining, total int) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.UploadsRemaining = remaining
		s.UploadsTotal = total
	}
}

// WithPlan 设置套餐
func WithPlan(planID, billingPeriod string) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.PlanID = planID
		s.BillingPeriod = billingPeriod
	}
}

// WithPeriodEnd 设置周期结束时间
func WithPeriodEnd(end time.Time) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.CurrentPeriodEnd = end
	}
}

// WithStripeSubscription 设置 Stripe 订阅 ID
func WithStripeSubscription(id string) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.StripeSubscriptionID = &id
	}
}

// WithRazorpayPayment 设置 Razorpay 支付 ID
func WithRazorpayPayment(id string) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.RazorpayPaymentID = &id
	}
}

// WithRazorpaySubscription 设置 Razorpay 订阅 ID
func WithRazorpaySubscription(id string) func(*model.DeveloperSubscription) {
	return func(s *model.DeveloperSubscription) {
		s.RazorpaySubscriptionID = &id
	}
}

// TestSession 创建 pending 状态的支付会话
func TestSession(t *testing.T, db *gorm.DB, sessionID, wallet string) *model.SubscriptionSession {
	t.Helper()

	session := &model.SubscriptionSession{
		SessionID:     sessionID,
		Provider:      model.ProviderStripe,
		WalletAddress: wallet,
		PlanID:        "professional",
		BillingPeriod: "monthly",
		PriceID:       "price_pro_monthly",
		Status:        model.SessionStatusPending,
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return session
}

// TestWaitlistEntry 创建候补名单记录
func TestWaitlistEntry(t *testing.T, db *gorm.DB, email string, opts ...func(*model.WaitlistEntry)) *model.WaitlistEntry {
	t.Helper()

	entry := &model.WaitlistEntry{
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Status:    "pending",
	}
	for _, opt := range opts {
		opt(entry)
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("Failed to create waitlist entry: %v", err)
	}
	return entry
}

// StripeSignatureHeader 按 Stripe 规则生成 Stripe-Signature 头
func StripeSignatureHeader(payload []byte, secret string) string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
