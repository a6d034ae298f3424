package collector

import (
	"context"
	"time"
)

// NewsItem 单个订阅条目经过信号提取后的统一结构
type NewsItem struct {
	GUID  string
	Link  string
	Title string
	// PubDate 为源中的原始日期字符串；PublishedAt 为解析结果，无法解析时为零值
	PubDate     string
	PublishedAt time.Time
	Signals
}

// Result 一次抓取的解析结果
type Result struct {
	Title string
	Items []NewsItem
}

// Fetcher 抽象一个订阅源的抓取与解析
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*Result, error)
}

// Discoverer 从普通网页中发现订阅地址
type Discoverer interface {
	Discover(ctx context.Context, pageURL string) (string, error)
}
