package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	stripego "github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/pkg/metrics"
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
	"github.com/qs3c/ainexus_server/internal/pkg/razorpay"
	"github.com/qs3c/ainexus_server/internal/pkg/signature"
	"github.com/qs3c/ainexus_server/internal/pkg/stripe"
	"github.com/qs3c/ainexus_server/internal/repository"
)

var (
	ErrMissingStripeSignature = errors.New("Missing stripe-signature header")
	ErrInvalidSignature       = errors.New("Invalid signature")
	ErrWebhookFailed          = errors.New("Webhook handler failed")
)

// errEventIgnored 事件无需处理（未知类型、找不到记录、metadata 不全）
var errEventIgnored = errors.New("event ignored")

// EventDeduper 按 provider 事件 ID 去重
type EventDeduper interface {
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	Release(ctx context.Context, provider, eventID string) error
}

type WebhookService struct {
	subRepo          *repository.SubscriptionRepository
	sessionRepo      *repository.SessionRepository
	catalog          *plan.Catalog
	stripeSecret     string
	razorpayVerifier signature.Verifier
	deduper          EventDeduper
	notifier         SubscriptionNotifier
	metrics          metrics.BillingMetrics
	now              func() time.Time
}

func NewWebhookService(
	subRepo *repository.SubscriptionRepository,
	sessionRepo *repository.SessionRepository,
	catalog *plan.Catalog,
	stripeSecret string,
	razorpayVerifier signature.Verifier,
	deduper EventDeduper,
	notifier SubscriptionNotifier,
	billingMetrics metrics.BillingMetrics,
) *WebhookService {
	if billingMetrics == nil {
		billingMetrics = metrics.Noop()
	}
	return &WebhookService{
		subRepo:          subRepo,
		sessionRepo:      sessionRepo,
		catalog:          catalog,
		stripeSecret:     stripeSecret,
		razorpayVerifier: razorpayVerifier,
		deduper:          deduper,
		notifier:         notifier,
		metrics:          billingMetrics,
		now:              time.Now,
	}
}

// HandleStripe 校验签名后按事件类型分发。单个事件处理失败不影响应答
func (s *WebhookService) HandleStripe(ctx context.Context, payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return ErrMissingStripeSignature
	}

	event, err := stripe.ParseWebhook(payload, sigHeader, s.stripeSecret)
	if err != nil {
		log.Printf("Stripe webhook signature verification failed: %v", err)
		s.metrics.IncWebhookEvent(model.ProviderStripe, "unknown", metrics.OutcomeRejected)
		return ErrInvalidSignature
	}

	eventType := string(event.Type)
	s.process(ctx, model.ProviderStripe, event.ID, eventType, func() error {
		return s.dispatchStripe(ctx, eventType, event.Data)
	})
	return nil
}

// HandleRazorpay 签名为原始 body 的 HMAC-SHA256（webhook secret）
func (s *WebhookService) HandleRazorpay(ctx context.Context, payload []byte, sig, eventID string) error {
	if !s.razorpayVerifier.Verify(payload, sig) {
		log.Printf("Razorpay webhook signature verification failed (event id %q)", eventID)
		s.metrics.IncWebhookEvent(model.ProviderRazorpay, "unknown", metrics.OutcomeRejected)
		return ErrInvalidSignature
	}

	event, err := razorpay.ParseWebhookEvent(payload)
	if err != nil {
		log.Printf("Razorpay webhook decode failed: %v", err)
		return ErrWebhookFailed
	}

	eventType := event.Event
	if eventType == "" {
		eventType = "unknown"
	}
	s.process(ctx, model.ProviderRazorpay, eventID, eventType, func() error {
		return s.dispatchRazorpay(ctx, event)
	})
	return nil
}

// process 去重后执行处理函数，错误和 panic 都只记日志
func (s *WebhookService) process(ctx context.Context, provider, eventID, eventType string, fn func() error) {
	if s.deduper != nil && eventID != "" {
		claimed, err := s.deduper.Claim(ctx, provider, eventID)
		if err != nil {
			log.Printf("Webhook dedup unavailable for %s event %s, processing anyway: %v", provider, eventID, err)
		} else if !claimed {
			log.Printf("Duplicate %s event %s (%s) skipped", provider, eventID, eventType)
			s.metrics.IncWebhookEvent(provider, eventType, metrics.OutcomeDuplicate)
			return
		}
	}

	outcome := s.runIsolated(provider, eventID, eventType, fn)
	if outcome == metrics.OutcomeFailed && s.deduper != nil && eventID != "" {
		// 失败的事件允许重投时再处理
		if err := s.deduper.Release(ctx, provider, eventID); err != nil {
			log.Printf("Failed to release dedup claim for %s event %s: %v", provider, eventID, err)
		}
	}
	s.metrics.IncWebhookEvent(provider, eventType, outcome)
}

func (s *WebhookService) runIsolated(provider, eventID, eventType string, fn func() error) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic handling %s event %s (%s): %v", provider, eventID, eventType, r)
			outcome = metrics.OutcomeFailed
		}
	}()

	err := fn()
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, errEventIgnored):
		log.Printf("%s event %s (%s) ignored: %v", provider, eventID, eventType, err)
		return metrics.OutcomeIgnored
	default:
		log.Printf("Error handling %s event %s (%s): %v", provider, eventID, eventType, err)
		return metrics.OutcomeFailed
	}
}

func (s *WebhookService) dispatchStripe(ctx context.Context, eventType string, data *stripego.EventData) error {
	if data == nil {
		return fmt.Errorf("%w: empty event data", errEventIgnored)
	}

	switch eventType {
	case stripe.EventCheckoutSessionCompleted:
		var sess stripego.CheckoutSession
		if err := json.Unmarshal(data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.handleCheckoutCompleted(&sess)

	case stripe.EventSubscriptionCreated:
		var sub stripego.Subscription
		if err := json.Unmarshal(data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleStripeSubscriptionCreated(ctx, &sub)

	case stripe.EventSubscriptionUpdated:
		var sub stripego.Subscription
		if err := json.Unmarshal(data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleStripeSubscriptionUpdated(ctx, &sub)

	case stripe.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.cancelStripeSubscription(ctx, sub.ID)

	case stripe.EventInvoicePaymentSucceeded:
		var inv stripego.Invoice
		if err := json.Unmarshal(data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return s.handleInvoicePaid(ctx, &inv)

	case stripe.EventInvoicePaymentFailed:
		var inv stripego.Invoice
		if err := json.Unmarshal(data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return s.handleInvoiceFailed(ctx, &inv)

	default:
		return fmt.Errorf("%w: unhandled event type %s", errEventIgnored, eventType)
	}
}

// handleCheckoutCompleted 会话置为 completed 并记录 Stripe customer/subscription
func (s *WebhookService) handleCheckoutCompleted(sess *stripego.CheckoutSession) error {
	if !stripe.MetadataComplete(sess.Metadata) {
		return fmt.Errorf("%w: checkout session %s missing metadata", errEventIgnored, sess.ID)
	}

	fields := map[string]interface{}{}
	if sess.Customer != nil && sess.Customer.ID != "" {
		fields["stripe_customer_id"] = sess.Customer.ID
	}
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		fields["stripe_subscription_id"] = sess.Subscription.ID
	}

	rows, err := s.sessionRepo.MarkCompleted(sess.ID, fields)
	if err != nil {
		return fmt.Errorf("complete session %s: %w", sess.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no session %s", errEventIgnored, sess.ID)
	}

	log.Printf("Checkout session %s completed for wallet %s", sess.ID, model.NormalizeWallet(sess.Metadata[stripe.MetadataWalletAddress]))
	return nil
}

func (s *WebhookService) handleStripeSubscriptionCreated(ctx context.Context, ss *stripego.Subscription) error {
	// 重投或 updated 先到时按同步处理
	if existing, err := s.subRepo.GetByStripeSubscriptionID(ss.ID); err == nil {
		return s.syncStripeSubscription(ctx, existing, ss)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if !stripe.MetadataComplete(ss.Metadata) {
		return fmt.Errorf("%w: subscription %s missing metadata", errEventIgnored, ss.ID)
	}
	details := s.catalog.Lookup(ss.Metadata[stripe.MetadataPlanID], ss.Metadata[stripe.MetadataBillingPeriod])
	if !details.Valid() {
		return fmt.Errorf("%w: subscription %s has unknown plan %s_%s", errEventIgnored, ss.ID,
			ss.Metadata[stripe.MetadataPlanID], ss.Metadata[stripe.MetadataBillingPeriod])
	}

	now := s.now()
	start, end := s.stripePeriod(ss, now, details.BillingPeriod)

	sub := &model.DeveloperSubscription{
		WalletAddress:        model.NormalizeWallet(ss.Metadata[stripe.MetadataWalletAddress]),
		PlanID:               details.PlanID,
		BillingPeriod:        details.BillingPeriod,
		Status:               mapStripeStatus(ss.Status),
		UploadsRemaining:     details.UploadQuota,
		UploadsTotal:         details.UploadQuota,
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		StripeSubscriptionID: strPtr(ss.ID),
	}
	if ss.Customer != nil {
		sub.StripeCustomerID = strPtr(ss.Customer.ID)
	}

	if err := s.subRepo.CreateSuperseding(sub); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发投递已插入同一订阅
			existing, getErr := s.subRepo.GetByStripeSubscriptionID(ss.ID)
			if getErr == nil {
				return s.syncStripeSubscription(ctx, existing, ss)
			}
		}
		return fmt.Errorf("create subscription %s: %w", ss.ID, err)
	}

	log.Printf("Stripe subscription %s created: wallet=%s plan=%s status=%s", ss.ID, sub.WalletAddress, details.Key(), sub.Status)
	if sub.Status == model.SubscriptionStatusActive {
		notify(ctx, s.notifier, pubsub.TypeSubscriptionActivated, sub)
	} else {
		notify(ctx, s.notifier, pubsub.TypeSubscriptionUpdated, sub)
	}
	return nil
}

func (s *WebhookService) handleStripeSubscriptionUpdated(ctx context.Context, ss *stripego.Subscription) error {
	existing, err := s.subRepo.GetByStripeSubscriptionID(ss.ID)
	if err != nil {
		return notFound("stripe subscription", ss.ID, err)
	}
	return s.syncStripeSubscription(ctx, existing, ss)
}

// syncStripeSubscription 以 Stripe 记录为准同步状态与周期
func (s *WebhookService) syncStripeSubscription(ctx context.Context, existing *model.DeveloperSubscription, ss *stripego.Subscription) error {
	status := mapStripeStatus(ss.Status)
	fields := map[string]interface{}{
		"status": status,
	}
	if ss.CurrentPeriodStart > 0 {
		fields["current_period_start"] = time.Unix(ss.CurrentPeriodStart, 0)
	}
	if ss.CurrentPeriodEnd > 0 {
		fields["current_period_end"] = time.Unix(ss.CurrentPeriodEnd, 0)
	}
	if status == model.SubscriptionStatusCancelled && existing.CancelledAt == nil {
		fields["cancelled_at"] = s.now()
	}

	return s.applyUpdate(ctx, existing, fields, pubsub.TypeSubscriptionUpdated)
}

func (s *WebhookService) cancelStripeSubscription(ctx context.Context, stripeSubID string) error {
	existing, err := s.subRepo.GetByStripeSubscriptionID(stripeSubID)
	if err != nil {
		return notFound("stripe subscription", stripeSubID, err)
	}
	return s.applyUpdate(ctx, existing, map[string]interface{}{
		"status":       model.SubscriptionStatusCancelled,
		"cancelled_at": s.now(),
	}, pubsub.TypeSubscriptionCancelled)
}

func (s *WebhookService) handleInvoicePaid(ctx context.Context, inv *stripego.Invoice) error {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return fmt.Errorf("%w: invoice %s has no subscription", errEventIgnored, inv.ID)
	}
	existing, err := s.subRepo.GetByStripeSubscriptionID(inv.Subscription.ID)
	if err != nil {
		return notFound("stripe subscription", inv.Subscription.ID, err)
	}

	now := s.now()
	fields := map[string]interface{}{
		"status":          model.SubscriptionStatusActive,
		"last_payment_at": now,
	}

	// 周期续费时重置配额，周期边界取发票行上的绝对值
	if string(inv.BillingReason) == stripe.BillingReasonSubscriptionCycle {
		details := s.catalog.Lookup(existing.PlanID, existing.BillingPeriod)
		if details.Valid() {
			fields["uploads_remaining"] = details.UploadQuota
			fields["uploads_total"] = details.UploadQuota
		}
		if start, end, ok := invoiceLinePeriod(inv); ok {
			fields["current_period_start"] = start
			fields["current_period_end"] = end
		}
	}

	return s.applyUpdate(ctx, existing, fields, pubsub.TypeSubscriptionActivated)
}

func (s *WebhookService) handleInvoiceFailed(ctx context.Context, inv *stripego.Invoice) error {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return fmt.Errorf("%w: invoice %s has no subscription", errEventIgnored, inv.ID)
	}
	existing, err := s.subRepo.GetByStripeSubscriptionID(inv.Subscription.ID)
	if err != nil {
		return notFound("stripe subscription", inv.Subscription.ID, err)
	}
	return s.applyUpdate(ctx, existing, map[string]interface{}{
		"status": model.SubscriptionStatusPaymentFailed,
	}, pubsub.TypePaymentFailed)
}

func (s *WebhookService) dispatchRazorpay(ctx context.Context, event *razorpay.WebhookEvent) error {
	switch event.Event {
	case razorpay.EventPaymentCaptured, razorpay.EventPaymentFailed:
		if event.Payload.Payment == nil || event.Payload.Payment.Entity.ID == "" {
			return fmt.Errorf("%w: %s without payment entity", errEventIgnored, event.Event)
		}
		paymentID := event.Payload.Payment.Entity.ID
		existing, err := s.subRepo.GetByRazorpayPaymentID(paymentID)
		if err != nil {
			return notFound("razorpay payment", paymentID, err)
		}

		if event.Event == razorpay.EventPaymentFailed {
			return s.applyUpdate(ctx, existing, map[string]interface{}{
				"status": model.SubscriptionStatusPaymentFailed,
			}, pubsub.TypePaymentFailed)
		}
		return s.applyUpdate(ctx, existing, map[string]interface{}{
			"status":          model.SubscriptionStatusActive,
			"last_payment_at": s.now(),
		}, pubsub.TypeSubscriptionActivated)

	case razorpay.EventSubscriptionCharged:
		rs := razorpaySubscription(event)
		if rs == nil {
			return fmt.Errorf("%w: %s without subscription entity", errEventIgnored, event.Event)
		}
		existing, err := s.subRepo.GetByRazorpaySubscriptionID(rs.ID)
		if err != nil {
			return notFound("razorpay subscription", rs.ID, err)
		}

		fields := map[string]interface{}{
			"status":          model.SubscriptionStatusActive,
			"last_payment_at": s.now(),
		}
		if details := s.catalog.Lookup(existing.PlanID, existing.BillingPeriod); details.Valid() {
			fields["uploads_remaining"] = details.UploadQuota
			fields["uploads_total"] = details.UploadQuota
		}
		if rs.CurrentStart > 0 {
			fields["current_period_start"] = time.Unix(rs.CurrentStart, 0)
		}
		if rs.CurrentEnd > 0 {
			fields["current_period_end"] = time.Unix(rs.CurrentEnd, 0)
		}
		return s.applyUpdate(ctx, existing, fields, pubsub.TypeSubscriptionActivated)

	case razorpay.EventSubscriptionCancelled:
		rs := razorpaySubscription(event)
		if rs == nil {
			return fmt.Errorf("%w: %s without subscription entity", errEventIgnored, event.Event)
		}
		existing, err := s.subRepo.GetByRazorpaySubscriptionID(rs.ID)
		if err != nil {
			return notFound("razorpay subscription", rs.ID, err)
		}
		return s.applyUpdate(ctx, existing, map[string]interface{}{
			"status":       model.SubscriptionStatusCancelled,
			"cancelled_at": s.now(),
		}, pubsub.TypeSubscriptionCancelled)

	default:
		return fmt.Errorf("%w: unhandled event type %s", errEventIgnored, event.Event)
	}
}

// applyUpdate 写入字段后推送最新状态
func (s *WebhookService) applyUpdate(ctx context.Context, existing *model.DeveloperSubscription, fields map[string]interface{}, msgType string) error {
	if err := s.subRepo.UpdateState(existing.ID, existing.WalletAddress, fields); err != nil {
		if errors.Is(err, repository.ErrSubscriptionCancelled) {
			return fmt.Errorf("%w: subscription %d already cancelled", errEventIgnored, existing.ID)
		}
		return fmt.Errorf("update subscription %d: %w", existing.ID, err)
	}

	updated, err := s.subRepo.GetByID(existing.ID)
	if err != nil {
		log.Printf("Failed to reload subscription %d: %v", existing.ID, err)
		return nil
	}
	log.Printf("Subscription %d updated: wallet=%s status=%s uploads=%d/%d",
		updated.ID, updated.WalletAddress, updated.Status, updated.UploadsRemaining, updated.UploadsTotal)
	notify(ctx, s.notifier, msgType, updated)
	return nil
}

// stripePeriod 优先使用 Stripe 给出的周期，缺失时按本地规则计算
func (s *WebhookService) stripePeriod(ss *stripego.Subscription, now time.Time, billingPeriod string) (time.Time, time.Time) {
	start := now
	if ss.CurrentPeriodStart > 0 {
		start = time.Unix(ss.CurrentPeriodStart, 0)
	}
	if ss.CurrentPeriodEnd > 0 {
		return start, time.Unix(ss.CurrentPeriodEnd, 0)
	}
	end, _ := plan.PeriodEnd(start, billingPeriod)
	return start, end
}

// mapStripeStatus Stripe 订阅状态映射为本地三态
func mapStripeStatus(status stripego.SubscriptionStatus) string {
	switch status {
	case stripego.SubscriptionStatusActive, stripego.SubscriptionStatusTrialing:
		return model.SubscriptionStatusActive
	case stripego.SubscriptionStatusCanceled, stripego.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionStatusCancelled
	default:
		// past_due, unpaid, incomplete, paused
		return model.SubscriptionStatusPaymentFailed
	}
}

func invoiceLinePeriod(inv *stripego.Invoice) (time.Time, time.Time, bool) {
	if inv.Lines == nil {
		return time.Time{}, time.Time{}, false
	}
	for _, line := range inv.Lines.Data {
		if line == nil || line.Period == nil || line.Period.Start <= 0 || line.Period.End <= 0 {
			continue
		}
		return time.Unix(line.Period.Start, 0), time.Unix(line.Period.End, 0), true
	}
	return time.Time{}, time.Time{}, false
}

func razorpaySubscription(event *razorpay.WebhookEvent) *razorpay.Subscription {
	if event.Payload.Subscription == nil || event.Payload.Subscription.Entity.ID == "" {
		return nil
	}
	return &event.Payload.Subscription.Entity
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: no subscription for %s %s", errEventIgnored, kind, id)
	}
	return fmt.Errorf("lookup %s %s: %w", kind, id, err)
}
