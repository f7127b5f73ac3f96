package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestSubscriptionMessage_JSON(t *testing.T) {
	msg := &SubscriptionMessage{
		Type:             TypeSubscriptionActivated,
		WalletAddress:    "0xabc",
		SubscriptionID:   7,
		PlanID:           "professional",
		BillingPeriod:    "monthly",
		Status:           "active",
		UploadsRemaining: 20,
		UploadsTotal:     20,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "wallet_address")
	assert.Contains(t, raw, "uploads_remaining")
	assert.Equal(t, "subscription.activated", raw["type"])
}

func TestPublisher_PublishSubscription(t *testing.T) {
	client, _ := setupTestRedis(t)

	publisher := NewPublisher(client)
	err := publisher.PublishSubscription(context.Background(), &SubscriptionMessage{
		Type:          TypeSubscriptionCancelled,
		WalletAddress: "0xabc",
		Status:        "cancelled",
	})
	require.NoError(t, err)
}

func TestPublisherSubscriber_RoundTrip(t *testing.T) {
	client, _ := setupTestRedis(t)

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *SubscriptionMessage, 1)
	ready := make(chan struct{})

	go func() {
		close(ready)
		_ = subscriber.Subscribe(ctx, func(msg *SubscriptionMessage) {
			received <- msg
		})
	}()
	<-ready

	// 订阅建立前发布的消息会丢失，循环重试直到收到
	deadline := time.After(3 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case msg := <-received:
			assert.Equal(t, TypeUploadConsumed, msg.Type)
			assert.Equal(t, "0xabc", msg.WalletAddress)
			assert.Equal(t, 19, msg.UploadsRemaining)
			return
		case <-ticker.C:
			require.NoError(t, publisher.PublishSubscription(ctx, &SubscriptionMessage{
				Type:             TypeUploadConsumed,
				WalletAddress:    "0xabc",
				UploadsRemaining: 19,
			}))
		case <-deadline:
			t.Fatal("did not receive subscription message")
		}
	}
}

func TestSubscriber_StopsOnCancel(t *testing.T) {
	client, _ := setupTestRedis(t)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(*SubscriptionMessage) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
