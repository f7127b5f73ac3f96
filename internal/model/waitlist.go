package model

import (
	"time"
)

type WaitlistEntry struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FirstName      string    `gorm:"size:100;not null" json:"first_name"`
	LastName       string    `gorm:"size:100;not null" json:"last_name"`
	Company        string    `gorm:"size:200" json:"company"`
	Role           string    `gorm:"size:100" json:"role"`
	UseCase        string    `gorm:"type:text" json:"use_case"`
	Interests      []string  `gorm:"type:text;serializer:json" json:"interests"`
	ReferralSource string    `gorm:"size:100;index" json:"referral_source"`
	Newsletter     bool      `gorm:"default:false" json:"newsletter"`
	Status         string    `gorm:"size:20;default:pending;index" json:"status"` // pending, invited, joined
	IPAddress      string    `gorm:"size:64" json:"-"`
	UserAgent      string    `gorm:"size:500" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist"
}
