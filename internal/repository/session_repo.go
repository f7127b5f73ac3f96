package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.SubscriptionSession) error {
	return r.db.Create(session).Error
}

func (r *SessionRepository) GetBySessionID(sessionID string) (*model.SubscriptionSession, error) {
	var session model.SubscriptionSession
	err := r.db.Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkCompleted 会话置为 completed，返回受影响行数（0 表示会话不存在）
func (r *SessionRepository) MarkCompleted(sessionID string, fields map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{
		"status": model.SessionStatusCompleted,
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.Model(&model.SubscriptionSession{}).
		Where("session_id = ?", sessionID).
		Updates(updates)
	return result.RowsAffected, result.Error
}
