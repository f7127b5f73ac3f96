package dto

// StripeCheckoutRequest 创建 Stripe Checkout 会话
type StripeCheckoutRequest struct {
	PriceID       string `json:"priceId" binding:"required"`
	PlanID        string `json:"planId" binding:"required"`
	BillingPeriod string `json:"billingPeriod" binding:"required"`
	WalletAddress string `json:"walletAddress" binding:"required"`
	SuccessURL    string `json:"successUrl"`
	CancelURL     string `json:"cancelUrl"`
}

type StripeCheckoutResponse struct {
	SessionID string `json:"sessionId"`
}

// RazorpayOrderRequest 创建 Razorpay 订单，amount 单位为卢比
type RazorpayOrderRequest struct {
	PlanID        string  `json:"planId" binding:"required"`
	BillingPeriod string  `json:"billingPeriod" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	WalletAddress string  `json:"walletAddress" binding:"required"`
	UserEmail     string  `json:"userEmail"`
	UserName      string  `json:"userName"`
}

// RazorpayOrderResponse amount 单位为派萨
type RazorpayOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// VerifyPaymentRequest Razorpay 前端回传的支付凭证
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
	PlanID            string `json:"planId" binding:"required"`
	BillingPeriod     string `json:"billingPeriod" binding:"required"`
	WalletAddress     string `json:"walletAddress" binding:"required"`
}

type VerifyPaymentResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

// PlanInfo 套餐目录条目
type PlanInfo struct {
	PlanID        string `json:"planId"`
	BillingPeriod string `json:"billingPeriod"`
	Price         int64  `json:"price"`
	Currency      string `json:"currency"`
	UploadQuota   int    `json:"uploadQuota"`
	StripePriceID string `json:"stripePriceId"`
}
