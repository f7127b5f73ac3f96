package model

import (
	"time"
)

// SubscriptionUpload 每次成功扣减配额的审计记录
type SubscriptionUpload struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	SubscriptionID int64     `gorm:"not null;index" json:"subscription_id"`
	AgentID        string    `gorm:"size:100;not null" json:"agent_id"`
	WalletAddress  string    `gorm:"size:100;not null;index" json:"wallet_address"`
	CreatedAt      time.Time `json:"created_at"`
}

func (SubscriptionUpload) TableName() string {
	return "subscription_uploads"
}
