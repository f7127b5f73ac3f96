package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelSubscriptionEvents = "subscription_events"
)

// 订阅事件类型
const (
	TypeSubscriptionActivated = "subscription.activated"
	TypeSubscriptionUpdated   = "subscription.updated"
	TypeSubscriptionCancelled = "subscription.cancelled"
	TypePaymentFailed         = "subscription.payment_failed"
	TypeUploadConsumed        = "subscription.upload"
)

// SubscriptionMessage 订阅状态变化通知，按钱包地址推送给前端
type SubscriptionMessage struct {
	Type             string `json:"type"`
	WalletAddress    string `json:"wallet_address"`
	SubscriptionID   int64  `json:"subscription_id"`
	PlanID           string `json:"plan_id,omitempty"`
	BillingPeriod    string `json:"billing_period,omitempty"`
	Status           string `json:"status"`
	UploadsRemaining int    `json:"uploads_remaining"`
	UploadsTotal     int    `json:"uploads_total"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishSubscription 发布订阅变化
func (p *Publisher) PublishSubscription(ctx context.Context, msg *SubscriptionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	return p.client.Publish(ctx, ChannelSubscriptionEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 阻塞读取订阅事件，直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*SubscriptionMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelSubscriptionEvents)
	defer pubsub.Close()

	// 等待订阅确认，避免丢失紧随其后的消息
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var subMsg SubscriptionMessage
			if err := json.Unmarshal([]byte(msg.Payload), &subMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&subMsg)
		}
	}
}
