package scheduler

import (
	"context"
	"log"

	"github.com/LJTian/FeedHub/internal/aggregator"
	"github.com/robfig/cron/v3"
)

// DefaultSpec 每 30 分钟全量刷新一次
const DefaultSpec = "*/30 * * * *"

// Refresher 由 aggregator.Aggregator 实现
type Refresher interface {
	RefreshAll(ctx context.Context) (aggregator.Stats, error)
}

type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
}

func New(spec string, r Refresher) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	c := cron.New()

	s := &Scheduler{
		cron:      c,
		refresher: r,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start 启动定时任务，并在后台立即执行首轮刷新
func (s *Scheduler) Start() {
	s.cron.Start()
	go s.runOnce()
}

// Stop 停止定时任务，返回的 context 在正在执行的任务结束后完成
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce 同步执行一轮刷新；每个订阅源的抓取各自有超时，这里不再额外限制
func (s *Scheduler) RunOnce() (aggregator.Stats, error) {
	return s.refresher.RefreshAll(context.Background())
}

func (s *Scheduler) runOnce() {
	log.Println("start refresh job...")
	stats, err := s.RunOnce()
	if err != nil {
		// 失败只记录，下一次定时任务照常执行
		log.Printf("refresh job error: %v", err)
		return
	}
	log.Printf("refresh job done, feeds=%d failed=%d archived=%d", stats.Feeds, stats.Failed, stats.Archived)
}
