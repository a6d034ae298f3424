package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/FeedHub/internal/metrics"
	"golang.org/x/time/rate"
)

// HostRateLimiter 让同一站点上的多个订阅源按最小间隔依次抓取，避免一轮刷新同时打到一个 host
type HostRateLimiter struct {
	interval time.Duration

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHostRateLimiter interval <= 0 表示不限速
func NewHostRateLimiter(interval time.Duration) *HostRateLimiter {
	return &HostRateLimiter{
		interval: interval,
		hosts:    make(map[string]*rate.Limiter),
	}
}

// Wait 阻塞到 feedURL 所在 host 可以再次请求，返回实际等待的时间
func (h *HostRateLimiter) Wait(ctx context.Context, feedURL string) (time.Duration, error) {
	host, err := feedHost(feedURL)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	err = h.limiter(host).Wait(ctx)
	waited := time.Since(start)
	metrics.RecordHostWait(waited)
	if err != nil {
		return waited, fmt.Errorf("wait for %s: %w", host, err)
	}
	return waited, nil
}

func (h *HostRateLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.hosts[host]
	if !ok {
		limit := rate.Inf
		if h.interval > 0 {
			limit = rate.Every(h.interval)
		}
		l = rate.NewLimiter(limit, 1)
		h.hosts[host] = l
	}
	return l
}

// feedHost 取小写 host（含端口），同一站点不同大小写写法共用一个限速器
func feedHost(feedURL string) (string, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("feed url %q has no host", feedURL)
	}
	return strings.ToLower(u.Host), nil
}
