package service

import (
	"context"
	"log"

	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
)

// SubscriptionNotifier 订阅变化通知（Redis pub/sub 实现）
type SubscriptionNotifier interface {
	PublishSubscription(ctx context.Context, msg *pubsub.SubscriptionMessage) error
}

// notify 发布失败只记日志
func notify(ctx context.Context, n SubscriptionNotifier, msgType string, sub *model.DeveloperSubscription) {
	if n == nil || sub == nil {
		return
	}

	msg := &pubsub.SubscriptionMessage{
		Type:             msgType,
		WalletAddress:    sub.WalletAddress,
		SubscriptionID:   sub.ID,
		PlanID:           sub.PlanID,
		BillingPeriod:    sub.BillingPeriod,
		Status:           sub.Status,
		UploadsRemaining: sub.UploadsRemaining,
		UploadsTotal:     sub.UploadsTotal,
	}
	if err := n.PublishSubscription(ctx, msg); err != nil {
		log.Printf("Failed to publish %s for subscription %d: %v", msgType, sub.ID, err)
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
