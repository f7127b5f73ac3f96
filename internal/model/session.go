package model

import (
	"time"
)

const (
	SessionStatusPending   = "pending"
	SessionStatusCompleted = "completed"
)

const (
	ProviderStripe   = "stripe"
	ProviderRazorpay = "razorpay"
)

// SubscriptionSession 发起支付时记录的会话，仅做审计，不删除
type SubscriptionSession struct {
	ID                   int64     `gorm:"primaryKey" json:"id"`
	SessionID            string    `gorm:"size:255;not null;uniqueIndex" json:"session_id"`
	Provider             string    `gorm:"size:20;not null" json:"provider"`
	WalletAddress        string    `gorm:"size:100;not null;index" json:"wallet_address"`
	PlanID               string    `gorm:"size:50;not null" json:"plan_id"`
	BillingPeriod        string    `gorm:"size:20;not null" json:"billing_period"`
	PriceID              string    `gorm:"size:100" json:"price_id"`
	Status               string    `gorm:"size:20;not null;default:pending" json:"status"`
	StripeCustomerID     *string   `gorm:"size:100" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string   `gorm:"size:100" json:"stripe_subscription_id,omitempty"`
	RazorpayPaymentID    *string   `gorm:"size:100" json:"razorpay_payment_id,omitempty"`
	RazorpayOrderID      *string   `gorm:"size:100" json:"razorpay_order_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (SubscriptionSession) TableName() string {
	return "subscription_sessions"
}
