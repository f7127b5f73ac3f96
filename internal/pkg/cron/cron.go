package cron

import (
	"log"
	"sync"
	"time"

	"github.com/qs3c/ainexus_server/internal/pkg/metrics"
)

// SubscriptionCounter 按套餐统计活跃订阅
type SubscriptionCounter interface {
	CountActiveByPlan() (map[string]int64, error)
}

// WaitlistCounter 统计候补名单人数
type WaitlistCounter interface {
	Count() (int64, error)
}

// Service 定时刷新业务 gauge
type Service struct {
	subs     SubscriptionCounter
	waitlist WaitlistCounter
	metrics  metrics.BillingMetrics
	plans    []string
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewService(
	subs SubscriptionCounter,
	waitlist WaitlistCounter,
	billingMetrics metrics.BillingMetrics,
	plans []string,
	interval time.Duration,
) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		subs:     subs,
		waitlist: waitlist,
		metrics:  billingMetrics,
		plans:    plans,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runRefresh()
	log.Printf("Cron service started (gauge refresh every %s)", s.interval)
}

// Stop 停止定时任务，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		log.Println("Cron service stopped")
	})
}

func (s *Service) runRefresh() {
	s.refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh 刷新活跃订阅和候补名单 gauge
func (s *Service) refresh() {
	if s.metrics == nil {
		return
	}

	if s.subs != nil {
		counts, err := s.subs.CountActiveByPlan()
		if err != nil {
			log.Printf("Failed to count active subscriptions: %v", err)
		} else {
			// 没有活跃订阅的套餐也要归零
			for _, p := range s.plans {
				s.metrics.SetActiveSubscriptions(p, counts[p])
			}
			for p, n := range counts {
				s.metrics.SetActiveSubscriptions(p, n)
			}
		}
	}

	if s.waitlist != nil {
		n, err := s.waitlist.Count()
		if err != nil {
			log.Printf("Failed to count waitlist: %v", err)
		} else {
			s.metrics.SetWaitlistSize(n)
		}
	}
}

// RunNow 立即刷新一次（用于测试或手动触发）
func (s *Service) RunNow() {
	log.Println("Manual gauge refresh triggered...")
	s.refresh()
}
