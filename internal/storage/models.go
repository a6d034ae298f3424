package storage

import "time"

// DefaultCategory 未分类 / 未指定分类时使用的兜底分类
const DefaultCategory = "General"

// DefaultMaxArticles 归档保留的最大文章数
const DefaultMaxArticles = 1000

// Feed 用户注册的订阅源
type Feed struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	AddedAt  time.Time `json:"addedAt"`
}

// Article 由单个订阅条目规范化得到的文章记录
type Article struct {
	ID               string   `json:"id"`
	FeedID           string   `json:"feedId"`
	FeedTitle        string   `json:"feedTitle"` // 冗余存储，渲染时无需再关联 Feed
	Title            string   `json:"title"`
	Link             string   `json:"link"`
	Description      string   `json:"description"` // 纯文本
	HTMLContent      string   `json:"htmlContent"`
	Image            string   `json:"image,omitempty"`
	PubDate          string   `json:"pubDate,omitempty"` // 源文件中的原始日期
	Timestamp        int64    `json:"timestamp"`         // 毫秒；源未提供或无法解析时取入库时间
	RSSCategories    []string `json:"rssCategories"`
	Categories       []string `json:"categories"`
	ManualCategories []string `json:"manualCategories"`

	// Undated 本次抓取时源没有可用日期，Timestamp 只是入库时间；不持久化
	Undated bool `json:"-"`
}

// HasCategory 自动分类或手动分类中任意一个包含 category 即视为命中
func (a *Article) HasCategory(category string) bool {
	for _, c := range a.Categories {
		if c == category {
			return true
		}
	}
	for _, c := range a.ManualCategories {
		if c == category {
			return true
		}
	}
	return false
}
