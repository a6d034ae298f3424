package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrNoFeedLink 页面中没有声明任何订阅地址
var ErrNoFeedLink = errors.New("no feed link found")

var feedLinkTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
	"application/json",
	"application/xml",
	"text/xml",
}

// FeedDiscoverer 抓取普通网页并读取 <link rel="alternate"> 声明的订阅地址
type FeedDiscoverer struct {
	Timeout time.Duration
}

func NewFeedDiscoverer(timeout time.Duration) *FeedDiscoverer {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	return &FeedDiscoverer{Timeout: timeout}
}

// Discover 返回页面中第一个订阅链接的绝对地址；ctx 取消时正在进行的页面请求随之中断
func (d *FeedDiscoverer) Discover(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("discover %s: %w", pageURL, err)
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(d.Timeout)
	c.WithTransport(&ctxTransport{ctx: ctx, base: http.DefaultTransport})

	found := ""
	c.OnHTML(`link[rel="alternate"]`, func(e *colly.HTMLElement) {
		if found != "" {
			return
		}
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" || !isFeedLinkType(e.Attr("type")) {
			return
		}
		found = e.Request.AbsoluteURL(href)
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("discover %s: %w", pageURL, err)
	}
	c.Wait()

	if found == "" {
		return "", fmt.Errorf("discover %s: %w", pageURL, ErrNoFeedLink)
	}
	return found, nil
}

// ctxTransport 把调用方的 ctx 绑到 colly 发出的每个请求上
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

// RoundTrip 保留请求自带的 ctx（http.Client 的超时挂在上面），调用方 ctx 结束时一并取消
func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	context.AfterFunc(t.ctx, cancel)
	return t.base.RoundTrip(req.WithContext(ctx))
}

func isFeedLinkType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, ft := range feedLinkTypes {
		if t == ft {
			return true
		}
	}
	return false
}
