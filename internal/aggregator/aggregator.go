package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/FeedHub/internal/collector"
	"github.com/LJTian/FeedHub/internal/metrics"
	"github.com/LJTian/FeedHub/internal/processor"
	"github.com/LJTian/FeedHub/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSource 注册时校验抓取失败
var ErrInvalidSource = errors.New("invalid RSS feed URL")

const (
	untitledFeed       = "Untitled Feed"
	defaultConcurrency = 8
	refreshKey         = "refresh-all"
)

// Stats 一轮全量刷新的结果
type Stats struct {
	Feeds    int `json:"feeds"`
	Failed   int `json:"failed"`
	Fetched  int `json:"fetched"`
	Archived int `json:"archived"`
}

type Options struct {
	// Concurrency 同时抓取的订阅源数量上限
	Concurrency int
}

// Aggregator 负责摄取编排以及对外的订阅源 / 文章操作
type Aggregator struct {
	archive    *storage.Archive
	fetcher    collector.Fetcher
	discoverer collector.Discoverer
	processor  *processor.Processor

	concurrency int
	group       singleflight.Group
	newID       func() string
	now         func() time.Time
}

// New discoverer 可为 nil，此时注册时不做网页订阅地址发现
func New(archive *storage.Archive, fetcher collector.Fetcher, discoverer collector.Discoverer, p *processor.Processor, opts Options) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if p == nil {
		p = processor.NewProcessor(nil)
	}
	return &Aggregator{
		archive:     archive,
		fetcher:     fetcher,
		discoverer:  discoverer,
		processor:   p,
		concurrency: opts.Concurrency,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// FetchFeedArticles 抓取单个订阅源并转换为文章；任何失败只记录日志并返回空列表
func (a *Aggregator) FetchFeedArticles(ctx context.Context, feed storage.Feed) ([]storage.Article, error) {
	start := time.Now()
	res, err := a.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		metrics.RecordFeedFetch("error", time.Since(start))
		log.Printf("fetch feed %s (%s) error: %v", feed.ID, feed.URL, err)
		return []storage.Article{}, err
	}
	metrics.RecordFeedFetch("ok", time.Since(start))
	return a.processor.Process(feed, res), nil
}

// RefreshAll 并发抓取所有订阅源，合并进归档后排序截断并保存。
// 单个源失败不影响整体；已有刷新在进行时，调用方等待并共享那一轮的结果。
func (a *Aggregator) RefreshAll(ctx context.Context) (Stats, error) {
	v, err, shared := a.group.Do(refreshKey, func() (any, error) {
		return a.refreshAll(context.WithoutCancel(ctx))
	})
	if shared {
		log.Println("refresh: joined in-flight run")
	}
	stats, _ := v.(Stats)
	return stats, err
}

func (a *Aggregator) refreshAll(ctx context.Context) (Stats, error) {
	start := time.Now()
	log.Println("refresh: start")

	feeds, err := a.archive.Feeds(ctx)
	if err != nil {
		metrics.RecordRefresh("error", time.Since(start), 0)
		return Stats{}, fmt.Errorf("refresh: load feeds: %w", err)
	}

	results := make([][]storage.Article, len(feeds))
	failed := make([]bool, len(feeds))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, f := range feeds {
		i, f := i, f // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			articles, err := a.FetchFeedArticles(ctx, f)
			results[i] = articles
			failed[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Feeds: len(feeds)}
	fresh := make([]storage.Article, 0)
	for i := range results {
		if failed[i] {
			stats.Failed++
		}
		fresh = append(fresh, results[i]...)
	}
	stats.Fetched = len(fresh)

	archived, err := a.archive.Merge(ctx, fresh)
	if err != nil {
		metrics.RecordRefresh("error", time.Since(start), 0)
		return stats, fmt.Errorf("refresh: save articles: %w", err)
	}
	stats.Archived = archived
	metrics.RecordRefresh("ok", time.Since(start), archived)

	log.Printf("refresh: done, feeds=%d failed=%d fetched=%d archived=%d cost=%s",
		stats.Feeds, stats.Failed, stats.Fetched, stats.Archived, time.Since(start).Round(time.Millisecond))
	return stats, nil
}

// RefreshFeed 只抓取一个已注册的订阅源并合并进归档，返回抓到的文章数
func (a *Aggregator) RefreshFeed(ctx context.Context, feedID string) (int, error) {
	feeds, err := a.archive.Feeds(ctx)
	if err != nil {
		return 0, err
	}
	for _, f := range feeds {
		if f.ID != feedID {
			continue
		}
		articles, err := a.FetchFeedArticles(ctx, f)
		if err != nil {
			return 0, err
		}
		if _, err := a.archive.Merge(ctx, articles); err != nil {
			return 0, fmt.Errorf("refresh feed %s: %w", f.ID, err)
		}
		return len(articles), nil
	}
	return 0, fmt.Errorf("feed %s: %w", feedID, storage.ErrNotFound)
}

// ---------- 对外操作 ----------

func (a *Aggregator) ListFeeds(ctx context.Context) ([]storage.Feed, error) {
	feeds, err := a.archive.Feeds(ctx)
	if err != nil {
		return nil, err
	}
	if feeds == nil {
		feeds = []storage.Feed{}
	}
	return feeds, nil
}

// AddFeed 先试抓一次校验地址（失败时尝试从网页中发现订阅地址），通过后保存并立即合并该源的文章
func (a *Aggregator) AddFeed(ctx context.Context, rawURL, title, category string) (*storage.Feed, error) {
	feedURL := strings.TrimSpace(rawURL)
	if err := validateURL(feedURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	res, err := a.fetcher.Fetch(ctx, feedURL)
	if err != nil && a.discoverer != nil {
		if found, derr := a.discoverer.Discover(ctx, feedURL); derr == nil {
			log.Printf("add feed: discovered %s from %s", found, feedURL)
			if res, err = a.fetcher.Fetch(ctx, found); err == nil {
				feedURL = found
			}
		}
	}
	if err != nil {
		log.Printf("add feed: validate %s failed: %v", feedURL, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	feed := storage.Feed{
		ID:       a.newID(),
		URL:      feedURL,
		Title:    firstNonEmpty(title, res.Title, untitledFeed),
		Category: firstNonEmpty(category, storage.DefaultCategory),
		AddedAt:  a.now().UTC(),
	}
	if err := a.archive.AddFeed(ctx, feed); err != nil {
		return nil, fmt.Errorf("add feed: %w", err)
	}

	articles := a.processor.Process(feed, res)
	if _, err := a.archive.Merge(ctx, articles); err != nil {
		return &feed, fmt.Errorf("add feed: merge articles: %w", err)
	}
	log.Printf("add feed: %s (%s) registered with %d articles", feed.ID, feed.URL, len(articles))
	return &feed, nil
}

// DeleteFeed 删除订阅源及其全部文章
func (a *Aggregator) DeleteFeed(ctx context.Context, id string) error {
	return a.archive.RemoveFeed(ctx, id)
}

func (a *Aggregator) ListArticles(ctx context.Context, category string) ([]storage.Article, error) {
	return a.archive.List(ctx, category)
}

// ListCategories 归档中出现过的分类与全部标准分类的并集
func (a *Aggregator) ListCategories(ctx context.Context) ([]string, error) {
	return a.archive.Categories(ctx, processor.TopicNames()...)
}

func (a *Aggregator) SetManualCategories(ctx context.Context, articleID string, labels []string) error {
	return a.archive.UpdateManualCategories(ctx, articleID, labels)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
