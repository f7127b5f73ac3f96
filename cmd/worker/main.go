package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/database"
	"github.com/qs3c/ainexus_server/internal/pkg/email"
	"github.com/qs3c/ainexus_server/internal/pkg/queue"
	"github.com/qs3c/ainexus_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	emailQueue := queue.NewQueue(rdb, cfg.Queue.EmailQueue)
	processor := worker.NewProcessor(email.NewService(&cfg.Email))

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	workers := cfg.Queue.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	log.Printf("Email worker started, queue: %s, max workers: %d", cfg.Queue.EmailQueue, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processor.Run(ctx, workerID, emailQueue)
		}(i)
	}

	wg.Wait()
	rdb.Close()
	log.Println("Worker shutdown complete")
}
