package model

import (
	"strings"
	"time"
)

// 订阅状态
const (
	SubscriptionStatusActive        = "active"
	SubscriptionStatusCancelled     = "cancelled"
	SubscriptionStatusPaymentFailed = "payment_failed"
)

// DeveloperSubscription 钱包地址对应的上传配额订阅
type DeveloperSubscription struct {
	ID                     int64      `gorm:"primaryKey" json:"id"`
	WalletAddress          string     `gorm:"size:100;not null;index" json:"wallet_address"`
	PlanID                 string     `gorm:"size:50;not null" json:"plan_id"`
	BillingPeriod          string     `gorm:"size:20;not null" json:"billing_period"`
	Status                 string     `gorm:"size:20;not null;index" json:"status"` // active, cancelled, payment_failed
	UploadsRemaining       int        `gorm:"not null;default:0" json:"uploads_remaining"`
	UploadsTotal           int        `gorm:"not null;default:0" json:"uploads_total"`
	CurrentPeriodStart     time.Time  `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd       time.Time  `gorm:"not null;index" json:"current_period_end"`
	StripeCustomerID       *string    `gorm:"size:100" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID   *string    `gorm:"size:100;uniqueIndex" json:"stripe_subscription_id,omitempty"`
	RazorpayPaymentID      *string    `gorm:"size:100;index" json:"razorpay_payment_id,omitempty"`
	RazorpayOrderID        *string    `gorm:"size:100" json:"razorpay_order_id,omitempty"`
	RazorpaySubscriptionID *string    `gorm:"size:100;index" json:"razorpay_subscription_id,omitempty"`
	LastPaymentAt          *time.Time `json:"last_payment_at,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (DeveloperSubscription) TableName() string {
	return "developer_subscriptions"
}

// IsUsable 状态为 active 且未过当前周期
func (s *DeveloperSubscription) IsUsable(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !now.After(s.CurrentPeriodEnd)
}

// NormalizeWallet 统一钱包地址格式，EVM 地址大小写不敏感
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
