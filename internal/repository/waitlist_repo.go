package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/internal/model"
)

type WaitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

type ReferralSourceCount struct {
	Source string
	Count  int64
}

func (r *WaitlistRepository) Create(entry *model.WaitlistEntry) error {
	return r.db.Create(entry).Error
}

func (r *WaitlistRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.WaitlistEntry{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *WaitlistRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.WaitlistEntry{}).Count(&count).Error
	return count, err
}

func (r *WaitlistRepository) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.WaitlistEntry{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

func (r *WaitlistRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&model.WaitlistEntry{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// TopReferralSources 按人数倒序的来源渠道，忽略空来源
func (r *WaitlistRepository) TopReferralSources(limit int) ([]ReferralSourceCount, error) {
	var rows []ReferralSourceCount
	err := r.db.Model(&model.WaitlistEntry{}).
		Select("referral_source AS source, COUNT(*) AS count").
		Where("referral_source <> ''").
		Group("referral_source").
		Order("count DESC, source ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
