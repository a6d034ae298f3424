package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	articlesCacheKey = "feedhub:articles"
	articlesCacheTTL = 5 * time.Minute
	insertBatchSize  = 200
)

// feedRow / articleRow 是两个集合在 PostgreSQL 中的表结构，Position 保留列表原有顺序
type feedRow struct {
	ID       string    `gorm:"primaryKey;size:64"`
	URL      string    `gorm:"size:1024"`
	Title    string    `gorm:"size:512"`
	Category string    `gorm:"size:128"`
	AddedAt  time.Time `gorm:"index"`
	Position int       `gorm:"index"`
}

func (feedRow) TableName() string { return "feeds" }

type articleRow struct {
	ID               string                      `gorm:"primaryKey;size:128"`
	FeedID           string                      `gorm:"size:64;index"`
	FeedTitle        string                      `gorm:"size:512"`
	Title            string                      `gorm:"type:text"`
	Link             string                      `gorm:"size:2048"`
	Description      string                      `gorm:"type:text"`
	HTMLContent      string                      `gorm:"type:text"`
	Image            string                      `gorm:"size:2048"`
	PubDate          string                      `gorm:"size:128"`
	Timestamp        int64                       `gorm:"index"`
	RSSCategories    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Categories       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ManualCategories datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Position         int                         `gorm:"index"`
}

func (articleRow) TableName() string { return "articles" }

// DBStore 基于 PostgreSQL 的 Store 实现，可选用 Redis 缓存文章列表
type DBStore struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewDBStore 连接数据库并建表；redisAddr 为空时不启用缓存
func NewDBStore(dsn, redisAddr string) (*DBStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&feedRow{}, &articleRow{}); err != nil {
		return nil, err
	}

	s := &DBStore{DB: db}
	if redisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	s.Redis = rdb
	return s, nil
}

func (s *DBStore) LoadFeeds(ctx context.Context) ([]Feed, error) {
	var rows []feedRow
	if err := s.DB.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	feeds := make([]Feed, 0, len(rows))
	for _, r := range rows {
		feeds = append(feeds, Feed{
			ID:       r.ID,
			URL:      r.URL,
			Title:    r.Title,
			Category: r.Category,
			AddedAt:  r.AddedAt,
		})
	}
	return feeds, nil
}

func (s *DBStore) SaveFeeds(ctx context.Context, feeds []Feed) error {
	rows := make([]feedRow, 0, len(feeds))
	for i, f := range feeds {
		rows = append(rows, feedRow{
			ID:       f.ID,
			URL:      f.URL,
			Title:    toValidUTF8(f.Title),
			Category: f.Category,
			AddedAt:  f.AddedAt,
			Position: i,
		})
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&feedRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("save feeds: %w", err)
	}
	return nil
}

func (s *DBStore) LoadArticles(ctx context.Context) ([]Article, error) {
	// L2: Redis 缓存
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, articlesCacheKey).Bytes(); err == nil {
			var cached []Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var rows []articleRow
	if err := s.DB.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	articles := make([]Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, Article{
			ID:               r.ID,
			FeedID:           r.FeedID,
			FeedTitle:        r.FeedTitle,
			Title:            r.Title,
			Link:             r.Link,
			Description:      r.Description,
			HTMLContent:      r.HTMLContent,
			Image:            r.Image,
			PubDate:          r.PubDate,
			Timestamp:        r.Timestamp,
			RSSCategories:    nonNil(r.RSSCategories),
			Categories:       nonNil(r.Categories),
			ManualCategories: nonNil(r.ManualCategories),
		})
	}

	if s.Redis != nil && len(articles) > 0 {
		if bs, err := json.Marshal(articles); err == nil {
			_ = s.Redis.Set(ctx, articlesCacheKey, bs, articlesCacheTTL).Err()
		}
	}
	return articles, nil
}

// SaveArticles 在一个事务里整体替换文章表，成功后清掉 Redis 缓存
func (s *DBStore) SaveArticles(ctx context.Context, articles []Article) error {
	rows := make([]articleRow, 0, len(articles))
	for i, a := range articles {
		rows = append(rows, articleRow{
			ID:               a.ID,
			FeedID:           a.FeedID,
			FeedTitle:        toValidUTF8(a.FeedTitle),
			Title:            toValidUTF8(a.Title),
			Link:             a.Link,
			Description:      toValidUTF8(a.Description),
			HTMLContent:      toValidUTF8(a.HTMLContent),
			Image:            a.Image,
			PubDate:          a.PubDate,
			Timestamp:        a.Timestamp,
			RSSCategories:    datatypes.JSONSlice[string](nonNil(a.RSSCategories)),
			Categories:       datatypes.JSONSlice[string](nonNil(a.Categories)),
			ManualCategories: datatypes.JSONSlice[string](nonNil(a.ManualCategories)),
			Position:         i,
		})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&articleRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("save articles: %w", err)
	}

	if s.Redis != nil {
		if err := s.Redis.Del(ctx, articlesCacheKey).Err(); err != nil {
			log.Printf("warn: redis invalidate articles: %v", err)
		}
	}
	return nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（部分源可能含 GBK/混编）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
