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
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
	"github.com/qs3c/ainexus_server/internal/pkg/signature"
	"github.com/qs3c/ainexus_server/internal/repository"
)

var (
	ErrInvalidPaymentSignature = errors.New("Invalid payment signature")
	ErrVerificationFailed      = errors.New("Payment verification failed")
)

const msgPaymentVerified = "Payment verified successfully"

type PaymentService struct {
	subRepo     *repository.SubscriptionRepository
	sessionRepo *repository.SessionRepository
	catalog     *plan.Catalog
	verifier    signature.Verifier
	notifier    SubscriptionNotifier
	metrics     metrics.BillingMetrics
	now         func() time.Time
}

// NewPaymentService verifier 使用 Razorpay key secret
func NewPaymentService(
	subRepo *repository.SubscriptionRepository,
	sessionRepo *repository.SessionRepository,
	catalog *plan.Catalog,
	verifier signature.Verifier,
	notifier SubscriptionNotifier,
	billingMetrics metrics.BillingMetrics,
) *PaymentService {
	if billingMetrics == nil {
		billingMetrics = metrics.Noop()
	}
	return &PaymentService{
		subRepo:     subRepo,
		sessionRepo: sessionRepo,
		catalog:     catalog,
		verifier:    verifier,
		notifier:    notifier,
		metrics:     billingMetrics,
		now:         time.Now,
	}
}

// VerifyRazorpayPayment 校验前端回传的支付凭证并开通订阅
func (s *PaymentService) VerifyRazorpayPayment(ctx context.Context, req *dto.VerifyPaymentRequest) (*dto.VerifyPaymentResponse, error) {
	wallet := model.NormalizeWallet(req.WalletAddress)
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" ||
		req.PlanID == "" || req.BillingPeriod == "" || wallet == "" {
		return nil, ErrMissingFields
	}

	// 1. 签名校验必须先于任何写操作
	proof := signature.PaymentProof(req.RazorpayOrderID, req.RazorpayPaymentID)
	if !s.verifier.Verify(proof, req.RazorpaySignature) {
		log.Printf("Invalid payment signature for order %s", req.RazorpayOrderID)
		s.metrics.IncPaymentVerified(metrics.OutcomeRejected)
		return nil, ErrInvalidPaymentSignature
	}

	// 2. 套餐
	details := s.catalog.Lookup(req.PlanID, req.BillingPeriod)
	if !details.Valid() {
		s.metrics.IncPaymentVerified(metrics.OutcomeRejected)
		return nil, ErrInvalidPlan
	}

	// 发起订单时记录了钱包和套餐，回传的上下文必须一致
	if session, err := s.sessionRepo.GetBySessionID(req.RazorpayOrderID); err == nil {
		if session.WalletAddress != wallet || session.PlanID != details.PlanID || session.BillingPeriod != details.BillingPeriod {
			log.Printf("Payment context mismatch for order %s: session wallet %s plan %s_%s",
				req.RazorpayOrderID, session.WalletAddress, session.PlanID, session.BillingPeriod)
			s.metrics.IncPaymentVerified(metrics.OutcomeRejected)
			return nil, ErrInvalidPlan
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Failed to load session %s: %v", req.RazorpayOrderID, err)
	}

	// 同一笔支付重复提交时不再重置配额
	if existing, err := s.subRepo.GetByRazorpayPaymentID(req.RazorpayPaymentID); err == nil {
		log.Printf("Payment %s already applied to subscription %d", req.RazorpayPaymentID, existing.ID)
		s.metrics.IncPaymentVerified(metrics.OutcomeDuplicate)
		return verifiedResponse(req.RazorpayPaymentID), nil
	}

	// 3. 周期
	now := s.now()
	periodEnd, ok := plan.PeriodEnd(now, details.BillingPeriod)
	if !ok {
		return nil, ErrInvalidPlan
	}

	// 4. 会话置为 completed，与订阅写入相互独立
	rows, err := s.sessionRepo.MarkCompleted(req.RazorpayOrderID, map[string]interface{}{
		"razorpay_payment_id": req.RazorpayPaymentID,
		"razorpay_order_id":   req.RazorpayOrderID,
	})
	if err != nil {
		log.Printf("Failed to complete session %s: %v", req.RazorpayOrderID, err)
	} else if rows == 0 {
		log.Printf("No session found for order %s", req.RazorpayOrderID)
	}

	// 5. 开通或续期
	sub := &model.DeveloperSubscription{
		WalletAddress:      wallet,
		PlanID:             details.PlanID,
		BillingPeriod:      details.BillingPeriod,
		Status:             model.SubscriptionStatusActive,
		UploadsRemaining:   details.UploadQuota,
		UploadsTotal:       details.UploadQuota,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		RazorpayPaymentID:  strPtr(req.RazorpayPaymentID),
		RazorpayOrderID:    strPtr(req.RazorpayOrderID),
		LastPaymentAt:      &now,
	}
	created, err := s.subRepo.UpsertActiveForWallet(sub)
	if err != nil {
		log.Printf("Failed to upsert subscription for wallet %s: %v", wallet, err)
		s.metrics.IncPaymentVerified(metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	log.Printf("Razorpay payment %s verified: wallet=%s plan=%s created=%v", req.RazorpayPaymentID, wallet, details.Key(), created)
	notify(ctx, s.notifier, pubsub.TypeSubscriptionActivated, sub)
	s.metrics.IncPaymentVerified(metrics.OutcomeSuccess)

	return verifiedResponse(req.RazorpayPaymentID), nil
}

func verifiedResponse(paymentID string) *dto.VerifyPaymentResponse {
	return &dto.VerifyPaymentResponse{
		Success:   true,
		Message:   msgPaymentVerified,
		PaymentID: paymentID,
	}
}
