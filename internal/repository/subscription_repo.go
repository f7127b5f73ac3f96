package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/ainexus_server/internal/model"
)

var (
	ErrQuotaExhausted       = errors.New("quota exhausted")
	ErrSubscriptionInactive = errors.New("subscription not active")
	ErrSubscriptionExpired  = errors.New("subscription expired")
	// 已取消的订阅不能重新激活
	ErrSubscriptionCancelled = errors.New("subscription cancelled")
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(sub *model.DeveloperSubscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.DeveloperSubscription, error) {
	var sub model.DeveloperSubscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActiveByWallet 钱包最近创建的 active 订阅
func (r *SubscriptionRepository) GetActiveByWallet(wallet string) (*model.DeveloperSubscription, error) {
	return activeByWallet(r.db, wallet)
}

func (r *SubscriptionRepository) GetByStripeSubscriptionID(stripeSubID string) (*model.DeveloperSubscription, error) {
	var sub model.DeveloperSubscription
	err := r.db.Where("stripe_subscription_id = ?", stripeSubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByRazorpayPaymentID(paymentID string) (*model.DeveloperSubscription, error) {
	var sub model.DeveloperSubscription
	err := r.db.Where("razorpay_payment_id = ?", paymentID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByRazorpaySubscriptionID(razorpaySubID string) (*model.DeveloperSubscription, error) {
	var sub model.DeveloperSubscription
	err := r.db.Where("razorpay_subscription_id = ?", razorpaySubID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertActiveForWallet 钱包已有 active 订阅则原地更新，否则插入新行。
// 并发插入撞上唯一索引时重新走一遍事务，此时会命中更新分支。
func (r *SubscriptionRepository) UpsertActiveForWallet(sub *model.DeveloperSubscription) (bool, error) {
	var created bool
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		created, err = r.upsertActive(sub)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return created, err
		}
	}
	return created, err
}

func (r *SubscriptionRepository) upsertActive(sub *model.DeveloperSubscription) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		existing, err := activeByWallet(tx.Clauses(clause.Locking{Strength: "UPDATE"}), sub.WalletAddress)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		sub.Status = model.SubscriptionStatusActive
		if existing == nil {
			created = true
			return tx.Create(sub).Error
		}

		fields := map[string]interface{}{
			"plan_id":              sub.PlanID,
			"billing_period":       sub.BillingPeriod,
			"status":               model.SubscriptionStatusActive,
			"uploads_remaining":    sub.UploadsRemaining,
			"uploads_total":        sub.UploadsTotal,
			"current_period_start": sub.CurrentPeriodStart,
			"current_period_end":   sub.CurrentPeriodEnd,
			"cancelled_at":         nil,
		}
		if sub.RazorpayPaymentID != nil {
			fields["razorpay_payment_id"] = *sub.RazorpayPaymentID
		}
		if sub.RazorpayOrderID != nil {
			fields["razorpay_order_id"] = *sub.RazorpayOrderID
		}
		if sub.LastPaymentAt != nil {
			fields["last_payment_at"] = *sub.LastPaymentAt
		}

		if err := tx.Model(&model.DeveloperSubscription{}).Where("id = ?", existing.ID).Updates(fields).Error; err != nil {
			return err
		}
		if err := supersedeOthers(tx, sub.WalletAddress, existing.ID); err != nil {
			return err
		}
		return tx.Where("id = ?", existing.ID).First(sub).Error
	})
	return created, err
}

// CreateSuperseding 插入新订阅；状态为 active 时先把同钱包其余 active 行置为 cancelled
func (r *SubscriptionRepository) CreateSuperseding(sub *model.DeveloperSubscription) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if sub.Status == model.SubscriptionStatusActive {
			if err := supersedeOthers(tx, sub.WalletAddress, 0); err != nil {
				return err
			}
		}
		return tx.Create(sub).Error
	})
}

// UpdateState 更新订阅字段；切换为 active 时同钱包其余 active 行被取代。
// cancelled 是终态，改成其他状态返回 ErrSubscriptionCancelled
func (r *SubscriptionRepository) UpdateState(id int64, wallet string, fields map[string]interface{}) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		status, ok := fields["status"]
		if !ok || status == model.SubscriptionStatusCancelled {
			return tx.Model(&model.DeveloperSubscription{}).Where("id = ?", id).Updates(fields).Error
		}

		var current model.DeveloperSubscription
		if err := tx.Select("id", "status").Where("id = ?", id).First(&current).Error; err != nil {
			return err
		}
		if current.Status == model.SubscriptionStatusCancelled {
			return ErrSubscriptionCancelled
		}
		if status == model.SubscriptionStatusActive {
			if err := supersedeOthers(tx, wallet, id); err != nil {
				return err
			}
		}

		result := tx.Model(&model.DeveloperSubscription{}).
			Where("id = ? AND status <> ?", id, model.SubscriptionStatusCancelled).
			Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSubscriptionCancelled
		}
		return nil
	})
}

// ConsumeUpload 条件扣减一次上传配额并写入审计记录，返回剩余次数
func (r *SubscriptionRepository) ConsumeUpload(subID int64, wallet, agentID string, now time.Time) (int, error) {
	remaining := 0
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var sub model.DeveloperSubscription
		if err := tx.Where("id = ?", subID).First(&sub).Error; err != nil {
			return err
		}
		if sub.Status != model.SubscriptionStatusActive {
			return ErrSubscriptionInactive
		}
		if now.After(sub.CurrentPeriodEnd) {
			return ErrSubscriptionExpired
		}

		// 扣减本身是原子的，不依赖上面读到的值
		result := tx.Model(&model.DeveloperSubscription{}).
			Where("id = ? AND status = ? AND uploads_remaining > 0", subID, model.SubscriptionStatusActive).
			Updates(map[string]interface{}{
				"uploads_remaining": gorm.Expr("uploads_remaining - 1"),
				"updated_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrQuotaExhausted
		}

		upload := &model.SubscriptionUpload{
			SubscriptionID: subID,
			AgentID:        agentID,
			WalletAddress:  wallet,
			CreatedAt:      now,
		}
		if err := tx.Create(upload).Error; err != nil {
			return err
		}

		return tx.Model(&model.DeveloperSubscription{}).
			Where("id = ?", subID).
			Select("uploads_remaining").
			Scan(&remaining).Error
	})
	return remaining, err
}

// CountUploads 订阅的审计记录数
func (r *SubscriptionRepository) CountUploads(subID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.SubscriptionUpload{}).Where("subscription_id = ?", subID).Count(&count).Error
	return count, err
}

// CountActiveByPlan 按套餐统计 active 订阅数
func (r *SubscriptionRepository) CountActiveByPlan() (map[string]int64, error) {
	var rows []struct {
		PlanID string
		Count  int64
	}
	err := r.db.Model(&model.DeveloperSubscription{}).
		Select("plan_id, COUNT(*) AS count").
		Where("status = ?", model.SubscriptionStatusActive).
		Group("plan_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.PlanID] = row.Count
	}
	return counts, nil
}

func activeByWallet(db *gorm.DB, wallet string) (*model.DeveloperSubscription, error) {
	var sub model.DeveloperSubscription
	err := db.Where("wallet_address = ? AND status = ?", wallet, model.SubscriptionStatusActive).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// supersedeOthers 取消钱包下除 keepID 之外的 active 订阅
func supersedeOthers(tx *gorm.DB, wallet string, keepID int64) error {
	now := time.Now()
	q := tx.Model(&model.DeveloperSubscription{}).
		Where("wallet_address = ? AND status = ?", wallet, model.SubscriptionStatusActive)
	if keepID > 0 {
		q = q.Where("id <> ?", keepID)
	}
	return q.Updates(map[string]interface{}{
		"status":       model.SubscriptionStatusCancelled,
		"cancelled_at": now,
	}).Error
}
