package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/qs3c/ainexus_server/internal/pkg/queue"
)

// 排队超过该时长的欢迎邮件直接丢弃
const maxJobAge = 72 * time.Hour

// WelcomeSender 发送候补名单欢迎邮件
type WelcomeSender interface {
	SendWaitlistWelcome(to, firstName string, position int64) error
}

// Processor 邮件任务处理器
type Processor struct {
	sender WelcomeSender
	now    func() time.Time
}

// NewProcessor 创建任务处理器
func NewProcessor(sender WelcomeSender) *Processor {
	return &Processor{
		sender: sender,
		now:    time.Now,
	}
}

// Process 处理一条邮件任务
func (p *Processor) Process(ctx context.Context, job *queue.EmailJob) error {
	if job.To == "" {
		return fmt.Errorf("email job without recipient")
	}

	if job.EnqueuedAt > 0 {
		age := p.now().Sub(time.Unix(job.EnqueuedAt, 0))
		if age > maxJobAge {
			log.Printf("Dropping stale %s email for %s (queued %s ago)", job.Kind, job.To, age.Round(time.Minute))
			return nil
		}
	}

	switch job.Kind {
	case queue.KindWaitlistWelcome:
		if err := p.sender.SendWaitlistWelcome(job.To, job.FirstName, job.Position); err != nil {
			return fmt.Errorf("failed to send welcome email to %s: %w", job.To, err)
		}
		log.Printf("Welcome email sent to %s (position %d)", job.To, job.Position)
		return nil
	default:
		return fmt.Errorf("unknown email job kind %q", job.Kind)
	}
}

// Run 循环消费队列直到 ctx 取消
func (p *Processor) Run(ctx context.Context, workerID int, q *queue.Queue) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
			job, err := q.Pop(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Worker %d: failed to pop job: %v", workerID, err)
				continue
			}

			if job == nil {
				continue // 超时，继续等待
			}

			if err := p.Process(ctx, job); err != nil {
				log.Printf("Worker %d: %v", workerID, err)
			}
		}
	}
}
