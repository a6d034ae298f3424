package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/LJTian/FeedHub/internal/collector"
	"github.com/LJTian/FeedHub/internal/storage"
	"github.com/microcosm-cc/bluemonday"
)

// Processor 把一次抓取结果转换为归档文章：生成 ID、归一化时间、分类、清洗 HTML
type Processor struct {
	classifier *Classifier
	policy     *bluemonday.Policy
	now        func() time.Time
}

func NewProcessor(classifier *Classifier) *Processor {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Processor{
		classifier: classifier,
		policy:     bluemonday.UGCPolicy(),
		now:        time.Now,
	}
}

func (p *Processor) Process(feed storage.Feed, res *collector.Result) []storage.Article {
	if res == nil {
		return []storage.Article{}
	}
	out := make([]storage.Article, 0, len(res.Items))
	seen := make(map[string]struct{})
	ingestedAt := p.now()

	feedTitle := strings.TrimSpace(res.Title)
	if feedTitle == "" {
		feedTitle = feed.Title
	}

	for _, it := range res.Items {
		id := ArticleID(feed.ID, it.GUID, it.Link, it.Title)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		published, undated := it.PublishedAt, it.PublishedAt.IsZero()
		if undated {
			published = ingestedAt
		}

		out = append(out, storage.Article{
			ID:               id,
			FeedID:           feed.ID,
			FeedTitle:        feedTitle,
			Title:            strings.TrimSpace(it.Title),
			Link:             strings.TrimSpace(it.Link),
			Description:      it.Text,
			HTMLContent:      p.policy.Sanitize(it.HTML),
			Image:            it.Image,
			PubDate:          it.PubDate,
			Timestamp:        published.UnixMilli(),
			RSSCategories:    nonNil(it.Categories),
			Categories:       p.classifier.Classify(it.Title, it.Text, it.Categories),
			ManualCategories: []string{},
			Undated:          undated,
		})
	}

	return out
}

// ArticleID 由 feed ID 与条目唯一标记（guid，其次 link，都没有时用标题）确定性生成；
// 同一条目重复抓取得到同一个 ID。三者皆空时返回空串。
func ArticleID(feedID, guid, link, title string) string {
	token := strings.TrimSpace(guid)
	if token == "" {
		token = strings.TrimSpace(link)
	}
	if token == "" {
		token = strings.TrimSpace(title)
	}
	if token == "" {
		return ""
	}
	return feedID + "-" + hashURL(token)
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
