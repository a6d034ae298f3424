package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const (
	userAgent          = "FeedHubBot/1.0"
	defaultFeedTimeout = 20 * time.Second
	slowHostWait       = time.Second
)

// FeedFetcher 使用 gofeed 抓取并解析 RSS / Atom / JSON Feed
type FeedFetcher struct {
	parser  *gofeed.Parser
	limiter *HostRateLimiter
	timeout time.Duration
}

// NewFeedFetcher 创建抓取器；limiter 为 nil 时不做按 host 限速
func NewFeedFetcher(timeout time.Duration, limiter *HostRateLimiter) *FeedFetcher {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}

	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = userAgent

	return &FeedFetcher{parser: parser, limiter: limiter, timeout: timeout}
}

// Fetch 抓取一个订阅源，整个过程受 timeout 约束
func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.limiter != nil {
		waited, err := f.limiter.Wait(ctx, feedURL)
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", feedURL, err)
		}
		if waited >= slowHostWait {
			log.Printf("fetch %s: waited %s for host slot", feedURL, waited.Round(time.Millisecond))
		}
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	res := &Result{
		Title: feed.Title,
		Items: make([]NewsItem, 0, len(feed.Items)),
	}
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		res.Items = append(res.Items, toNewsItem(it))
	}
	log.Printf("fetch %s done, items=%d", feedURL, len(res.Items))
	return res, nil
}

func toNewsItem(it *gofeed.Item) NewsItem {
	raw := FromGofeed(it)

	n := NewsItem{
		GUID:    raw.GUID,
		Link:    raw.Link,
		Title:   raw.Title,
		PubDate: raw.Published,
		Signals: Extract(raw),
	}
	// Atom 常只有 updated，没有 published
	if it.PublishedParsed != nil {
		n.PublishedAt = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		n.PublishedAt = *it.UpdatedParsed
		if n.PubDate == "" {
			n.PubDate = it.Updated
		}
	}
	return n
}

// FromGofeed 把 gofeed.Item 转成 RawItem，扩展字段（media、itunes、dc）不存在时保持零值
func FromGofeed(it *gofeed.Item) RawItem {
	raw := RawItem{
		GUID:        it.GUID,
		Link:        it.Link,
		Title:       it.Title,
		Published:   it.Published,
		Content:     it.Content,
		Description: it.Description,
		Categories:  append([]string(nil), it.Categories...),
	}

	if media, ok := it.Extensions["media"]; ok {
		raw.MediaContents = appendMedia(raw.MediaContents, media["content"])
		for _, group := range media["group"] {
			raw.MediaContents = appendMedia(raw.MediaContents, group.Children["content"])
		}
		for _, t := range media["thumbnail"] {
			if u := t.Attrs["url"]; u != "" {
				raw.MediaThumbnails = append(raw.MediaThumbnails, u)
			}
		}
	}

	for _, enc := range it.Enclosures {
		if enc == nil {
			continue
		}
		raw.Enclosures = append(raw.Enclosures, Enclosure{URL: enc.URL, Type: enc.Type})
	}

	if it.ITunesExt != nil {
		raw.ITunesImage = it.ITunesExt.Image
	}
	// RSS 解析时 gofeed 已把 dc:subject 追加到 Categories 末尾，Atom 不会
	if it.DublinCoreExt != nil && !hasSuffix(it.Categories, it.DublinCoreExt.Subject) {
		raw.Category = append([]string(nil), it.DublinCoreExt.Subject...)
	}
	return raw
}

func hasSuffix(list, tail []string) bool {
	if len(tail) > len(list) {
		return false
	}
	off := len(list) - len(tail)
	for i := range tail {
		if list[off+i] != tail[i] {
			return false
		}
	}
	return true
}

func appendMedia(dst []Media, exts []ext.Extension) []Media {
	for _, c := range exts {
		dst = append(dst, Media{URL: c.Attrs["url"], Type: c.Attrs["type"]})
	}
	return dst
}
