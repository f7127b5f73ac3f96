package dto

import "time"

type ConsumeUploadRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	AgentID       string `json:"agentId" binding:"required"`
}

type ConsumeUploadResponse struct {
	Success          bool   `json:"success"`
	UploadsRemaining int    `json:"uploadsRemaining"`
	Message          string `json:"message"`
}

type SubscriptionStatusResponse struct {
	HasActiveSubscription bool                `json:"hasActiveSubscription"`
	Subscription          *SubscriptionDetail `json:"subscription"`
}

type SubscriptionDetail struct {
	ID               int64     `json:"id"`
	PlanID           string    `json:"planId"`
	BillingPeriod    string    `json:"billingPeriod"`
	Status           string    `json:"status"`
	UploadsRemaining int       `json:"uploadsRemaining"`
	UploadsTotal     int       `json:"uploadsTotal"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
	CreatedAt        time.Time `json:"createdAt"`
}
