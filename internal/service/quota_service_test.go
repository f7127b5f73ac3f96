package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
	"github.com/qs3c/ainexus_server/internal/testutil"
)

func setupQuotaService(t *testing.T) (*QuotaService, *repos, *recordingNotifier) {
	t.Helper()
	r := setupRepos(t)
	n := &recordingNotifier{}
	return NewQuotaService(r.subs, n, nil), r, n
}

func TestQuotaService_Consume_Success(t *testing.T) {
	svc, r, n := setupQuotaService(t)
	sub := testutil.TestSubscription(t, r.db)

	// 地址大小写不敏感
	resp, err := svc.Consume(context.Background(), &dto.ConsumeUploadRequest{
		WalletAddress: "0x" + strings.ToUpper(sub.WalletAddress[2:]),
		AgentID:       "agent-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 19, resp.UploadsRemaining)
	assert.Equal(t, "Upload quota decremented successfully", resp.Message)

	count, err := r.subs.CountUploads(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{pubsub.TypeUploadConsumed}, n.types())
}

func TestQuotaService_Consume_MissingFields(t *testing.T) {
	svc, _, _ := setupQuotaService(t)

	_, err := svc.Consume(context.Background(), &dto.ConsumeUploadRequest{WalletAddress: testutil.TestWallet()})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Consume(context.Background(), &dto.ConsumeUploadRequest{WalletAddress: "  ", AgentID: "agent-1"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestQuotaService_Consume_NoSubscription(t *testing.T) {
	svc, r, _ := setupQuotaService(t)
	cancelled := testutil.TestSubscription(t, r.db, testutil.WithStatus(model.SubscriptionStatusCancelled))

	_, err := svc.Consume(context.Background(), &dto.ConsumeUploadRequest{WalletAddress: cancelled.WalletAddress, AgentID: "agent-1"})
	assert.ErrorIs(t, err, ErrNoActiveSubscription)

	_, err = svc.Consume(context.Background(), &dto.ConsumeUploadRequest{WalletAddress: testutil.TestWallet(), AgentID: "agent-1"})
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestQuotaService_Consume_Expired(t *testing.T) {
	svc, r, _ := setupQuotaService(t)
	sub := testutil.TestSubscription(t, r.db, testutil.WithPeriodEnd(time.Now().Add(-time.Hour)))

	_, err := svc.Consume(context.Background(), &dto.ConsumeUploadRequest{WalletAddress: sub.WalletAddress, AgentID: "agent-1"})
	assert.ErrorIs(t, err, ErrSubscriptionExpired)

	after, err := r.subs.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, after.UploadsRemaining)
}

func TestQuotaService_Consume_ExhaustedStaysAtZero(t *testing.T) {
	svc, r, _ := setupQuotaService(t)
	sub := testutil.TestSubscription(t, r.db, testutil.WithUploads(2, 20))
	req := &dto.ConsumeUploadRequest{WalletAddress: sub.WalletAddress, AgentID: "agent-1"}

	last := 2
	for i := 0; i < 2; i++ {
		resp, err := svc.Consume(context.Background(), req)
		require.NoError(t, err)
		assert.Less(t, resp.UploadsRemaining, last)
		last = resp.UploadsRemaining
	}

	for i := 0; i < 3; i++ {
		_, err := svc.Consume(context.Background(), req)
		assert.ErrorIs(t, err, ErrQuotaExhausted)
	}

	after, err := r.subs.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.UploadsRemaining)

	count, err := r.subs.CountUploads(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// 5 次配额，并发 12 个请求，恰好 5 个成功
func TestQuotaService_Consume_ConcurrentNeverOverspends(t *testing.T) {
	svc, r, _ := setupQuotaService(t)
	sub := testutil.TestSubscription(t, r.db, testutil.WithUploads(5, 20))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(context.Background(), &dto.ConsumeUploadRequest{
				WalletAddress: sub.WalletAddress,
				AgentID:       "agent-concurrent",
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				succeeded++
			case ErrQuotaExhausted:
				exhausted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 7, exhausted)

	after, err := r.subs.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.UploadsRemaining)

	count, err := r.subs.CountUploads(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestQuotaService_GetStatus(t *testing.T) {
	svc, r, _ := setupQuotaService(t)
	sub := testutil.TestSubscription(t, r.db, testutil.WithUploads(4, 20))

	status, err := svc.GetStatus(strings.ToUpper(sub.WalletAddress))
	require.NoError(t, err)
	assert.True(t, status.HasActiveSubscription)
	require.NotNil(t, status.Subscription)
	assert.Equal(t, sub.ID, status.Subscription.ID)
	assert.Equal(t, "professional", status.Subscription.PlanID)
	assert.Equal(t, 4, status.Subscription.UploadsRemaining)
	assert.Equal(t, 20, status.Subscription.UploadsTotal)
}

func TestQuotaService_GetStatus_NoneOrExpired(t *testing.T) {
	svc, r, _ := setupQuotaService(t)
	expired := testutil.TestSubscription(t, r.db, testutil.WithPeriodEnd(time.Now().Add(-time.Minute)))

	status, err := svc.GetStatus(expired.WalletAddress)
	require.NoError(t, err)
	assert.False(t, status.HasActiveSubscription)
	assert.Nil(t, status.Subscription)

	status, err = svc.GetStatus(testutil.TestWallet())
	require.NoError(t, err)
	assert.False(t, status.HasActiveSubscription)

	_, err = svc.GetStatus("")
	assert.ErrorIs(t, err, ErrWalletRequired)
}
