package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/metrics"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
	"github.com/qs3c/ainexus_server/internal/repository"
)

var (
	ErrWalletRequired       = errors.New("Wallet address is required")
	ErrStatusFailed         = errors.New("Failed to fetch subscription status")
	ErrNoActiveSubscription = errors.New("No active subscription found")
	ErrSubscriptionExpired  = errors.New("Subscription has expired")
	ErrQuotaExhausted       = errors.New("No uploads remaining in current period")
	ErrUploadFailed         = errors.New("Failed to process upload")
)

const msgUploadConsumed = "Upload quota decremented successfully"

type QuotaService struct {
	subRepo  *repository.SubscriptionRepository
	notifier SubscriptionNotifier
	metrics  metrics.BillingMetrics
	now      func() time.Time
}

func NewQuotaService(
	subRepo *repository.SubscriptionRepository,
	notifier SubscriptionNotifier,
	billingMetrics metrics.BillingMetrics,
) *QuotaService {
	if billingMetrics == nil {
		billingMetrics = metrics.Noop()
	}
	return &QuotaService{
		subRepo:  subRepo,
		notifier: notifier,
		metrics:  billingMetrics,
		now:      time.Now,
	}
}

// Consume 扣减一次上传配额
func (s *QuotaService) Consume(ctx context.Context, req *dto.ConsumeUploadRequest) (*dto.ConsumeUploadResponse, error) {
	wallet := model.NormalizeWallet(req.WalletAddress)
	if wallet == "" || req.AgentID == "" {
		return nil, ErrMissingFields
	}

	sub, err := s.subRepo.GetActiveByWallet(wallet)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncQuotaConsumed(metrics.OutcomeRejected)
			return nil, ErrNoActiveSubscription
		}
		s.metrics.IncQuotaConsumed(metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	now := s.now()
	if now.After(sub.CurrentPeriodEnd) {
		s.metrics.IncQuotaConsumed(metrics.OutcomeRejected)
		return nil, ErrSubscriptionExpired
	}
	if sub.UploadsRemaining <= 0 {
		s.metrics.IncQuotaConsumed(metrics.OutcomeRejected)
		return nil, ErrQuotaExhausted
	}

	remaining, err := s.subRepo.ConsumeUpload(sub.ID, wallet, req.AgentID, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrQuotaExhausted):
			s.metrics.IncQuotaConsumed(metrics.OutcomeRejected)
			return nil, ErrQuotaExhausted
		case errors.Is(err, repository.ErrSubscriptionExpired):
			s.metrics.IncQuotaConsumed(metrics.OutcomeRejected)
			return nil, ErrSubscriptionExpired
		case errors.Is(err, repository.ErrSubscriptionInactive):
			s.metrics.IncQuotaConsumed(metrics.OutcomeRejected)
			return nil, ErrNoActiveSubscription
		}
		s.metrics.IncQuotaConsumed(metrics.OutcomeFailed)
		log.Printf("Failed to consume upload for wallet %s: %v", wallet, err)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	sub.UploadsRemaining = remaining
	notify(ctx, s.notifier, pubsub.TypeUploadConsumed, sub)
	s.metrics.IncQuotaConsumed(metrics.OutcomeSuccess)

	return &dto.ConsumeUploadResponse{
		Success:          true,
		UploadsRemaining: remaining,
		Message:          msgUploadConsumed,
	}, nil
}

// GetStatus 查询钱包当前可用订阅，过期视为无订阅
func (s *QuotaService) GetStatus(wallet string) (*dto.SubscriptionStatusResponse, error) {
	wallet = model.NormalizeWallet(wallet)
	if wallet == "" {
		return nil, ErrWalletRequired
	}

	sub, err := s.subRepo.GetActiveByWallet(wallet)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.SubscriptionStatusResponse{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStatusFailed, err)
	}

	if !sub.IsUsable(s.now()) {
		return &dto.SubscriptionStatusResponse{}, nil
	}

	return &dto.SubscriptionStatusResponse{
		HasActiveSubscription: true,
		Subscription: &dto.SubscriptionDetail{
			ID:               sub.ID,
			PlanID:           sub.PlanID,
			BillingPeriod:    sub.BillingPeriod,
			Status:           sub.Status,
			UploadsRemaining: sub.UploadsRemaining,
			UploadsTotal:     sub.UploadsTotal,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			CreatedAt:        sub.CreatedAt,
		},
	}, nil
}
