package main

import (
	"log"

	"github.com/LJTian/FeedHub/internal/aggregator"
	"github.com/LJTian/FeedHub/internal/collector"
	"github.com/LJTian/FeedHub/internal/config"
	"github.com/LJTian/FeedHub/internal/processor"
	"github.com/LJTian/FeedHub/internal/scheduler"
	"github.com/LJTian/FeedHub/internal/storage"
)

// 一个仅执行一次全量刷新的命令行入口：适合手动触发或由外部 cron 调用
func main() {
	cfg := config.Load()

	store, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	agg := aggregator.New(
		storage.NewArchive(store, cfg.MaxArticles),
		collector.NewFeedFetcher(cfg.FeedTimeout, collector.NewHostRateLimiter(cfg.HostInterval)),
		nil,
		processor.NewProcessor(nil),
		aggregator.Options{Concurrency: cfg.FetchConcurrency},
	)

	s, err := scheduler.New(cfg.CronSpec, agg)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮刷新后退出
	if _, err := s.RunOnce(); err != nil {
		log.Fatalf("refresh failed: %v", err)
	}
}
