package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/model/dto"
	"github.com/qs3c/ainexus_server/internal/pkg/queue"
	"github.com/qs3c/ainexus_server/internal/repository"
)

var (
	ErrInvalidEmail      = errors.New("Invalid email address")
	ErrAlreadyOnWaitlist = errors.New("This email is already on our waitlist!")
	ErrJoinFailed        = errors.New("Failed to join waitlist")
)

const (
	msgJoinedWaitlist  = "Successfully joined the waitlist!"
	waitlistStatusNew  = "pending"
	recentSignupWindow = 7 * 24 * time.Hour
	topReferralSources = 5
)

// ClientInfo 请求来源信息
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type WaitlistService struct {
	repo     *repository.WaitlistRepository
	queue    *queue.Queue
	validate *validator.Validate
	now      func() time.Time
}

// NewWaitlistService emailQueue 为 nil 时不发送欢迎邮件
func NewWaitlistService(repo *repository.WaitlistRepository, emailQueue *queue.Queue) *WaitlistService {
	return &WaitlistService{
		repo:     repo,
		queue:    emailQueue,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Join 加入候补名单
func (s *WaitlistService) Join(ctx context.Context, req *dto.JoinWaitlistRequest, client ClientInfo) (*dto.JoinWaitlistResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if email == "" || firstName == "" || lastName == "" {
		return nil, ErrMissingFields
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, ErrInvalidEmail
	}

	exists, err := s.repo.ExistsByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	if exists {
		return nil, ErrAlreadyOnWaitlist
	}

	entry := &model.WaitlistEntry{
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		Company:        strings.TrimSpace(req.Company),
		Role:           strings.TrimSpace(req.Role),
		UseCase:        strings.TrimSpace(req.UseCase),
		Interests:      req.Interests,
		ReferralSource: strings.TrimSpace(req.ReferralSource),
		Newsletter:     req.Newsletter,
		Status:         waitlistStatusNew,
		IPAddress:      client.IPAddress,
		UserAgent:      truncate(client.UserAgent, 500),
		CreatedAt:      s.now(),
	}
	if entry.Interests == nil {
		entry.Interests = []string{}
	}

	if err := s.repo.Create(entry); err != nil {
		// 并发提交同一邮箱
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyOnWaitlist
		}
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}

	total, err := s.repo.Count()
	if err != nil {
		log.Printf("Failed to count waitlist after insert: %v", err)
	}

	s.enqueueWelcome(ctx, entry, total)

	return &dto.JoinWaitlistResponse{
		Success:    true,
		Message:    msgJoinedWaitlist,
		Position:   total,
		TotalCount: total,
	}, nil
}

// Stats 候补名单统计
func (s *WaitlistService) Stats() (*dto.WaitlistStats, error) {
	total, err := s.repo.Count()
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.CountSince(s.now().Add(-recentSignupWindow))
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.CountByStatus()
	if err != nil {
		return nil, err
	}
	sources, err := s.repo.TopReferralSources(topReferralSources)
	if err != nil {
		return nil, err
	}

	top := make([]dto.ReferralCount, 0, len(sources))
	for _, src := range sources {
		top = append(top, dto.ReferralCount{Source: src.Source, Count: src.Count})
	}

	return &dto.WaitlistStats{
		Total:              total,
		Recent:             recent,
		ByStatus:           byStatus,
		TopReferralSources: top,
	}, nil
}

// Count 候补名单总人数
func (s *WaitlistService) Count() (int64, error) {
	return s.repo.Count()
}

func (s *WaitlistService) enqueueWelcome(ctx context.Context, entry *model.WaitlistEntry, position int64) {
	if s.queue == nil {
		return
	}
	job := &queue.EmailJob{
		Kind:       queue.KindWaitlistWelcome,
		To:         entry.Email,
		FirstName:  entry.FirstName,
		Position:   position,
		EnqueuedAt: s.now().Unix(),
	}
	if err := s.queue.Push(ctx, job); err != nil {
		log.Printf("Failed to enqueue welcome email for %s: %v", entry.Email, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
