package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Archive 是归档的唯一写入口：所有 load-modify-save 都在同一把锁内完成，
// 定时刷新、手动分类编辑、删除订阅源之间不会互相覆盖。
type Archive struct {
	store       Store
	maxArticles int
	mu          sync.Mutex
}

func NewArchive(store Store, maxArticles int) *Archive {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	return &Archive{store: store, maxArticles: maxArticles}
}

// ---------- 订阅源 ----------

func (a *Archive) Feeds(ctx context.Context) ([]Feed, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.LoadFeeds(ctx)
}

// AddFeed 追加一个订阅源
func (a *Archive) AddFeed(ctx context.Context, feed Feed) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	feeds, err := a.store.LoadFeeds(ctx)
	if err != nil {
		return err
	}
	feeds = append(feeds, feed)
	return a.store.SaveFeeds(ctx, feeds)
}

// RemoveFeed 删除订阅源并级联删除其全部文章
func (a *Archive) RemoveFeed(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	feeds, err := a.store.LoadFeeds(ctx)
	if err != nil {
		return err
	}
	kept := make([]Feed, 0, len(feeds))
	for _, f := range feeds {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(feeds) {
		return fmt.Errorf("feed %s: %w", id, ErrNotFound)
	}
	// 先删文章再删订阅源：中途失败时留下的是一个空的订阅源，下轮刷新可补回，而不是没有归属的文章
	if err := a.removeByFeed(ctx, id); err != nil {
		return err
	}
	return a.store.SaveFeeds(ctx, kept)
}

// ---------- 文章 ----------

func (a *Archive) LoadAll(ctx context.Context) ([]Article, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.LoadArticles(ctx)
}

// SaveAll 整体覆盖归档，写入前同样排序并截断
func (a *Archive) SaveAll(ctx context.Context, articles []Article) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.SaveArticles(ctx, MergeArticles(nil, articles, a.maxArticles))
}

// RemoveByFeed 删除 feedID 下的所有文章
func (a *Archive) RemoveByFeed(ctx context.Context, feedID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeByFeed(ctx, feedID)
}

func (a *Archive) removeByFeed(ctx context.Context, feedID string) error {
	articles, err := a.store.LoadArticles(ctx)
	if err != nil {
		return err
	}
	kept := make([]Article, 0, len(articles))
	for _, art := range articles {
		if art.FeedID != feedID {
			kept = append(kept, art)
		}
	}
	if len(kept) == len(articles) {
		return nil
	}
	return a.store.SaveArticles(ctx, kept)
}

func (a *Archive) FindByID(ctx context.Context, id string) (*Article, error) {
	articles, err := a.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].ID == id {
			return &articles[i], nil
		}
	}
	return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
}

// UpdateManualCategories 覆盖文章的手动分类；文章不存在时不做任何写入
func (a *Archive) UpdateManualCategories(ctx context.Context, id string, labels []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	articles, err := a.store.LoadArticles(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i := range articles {
		if articles[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	articles[idx].ManualCategories = cleanLabels(labels)
	return a.store.SaveArticles(ctx, articles)
}

// Merge 把新抓取的文章按 ID upsert 进归档，排序并截断后保存，返回归档条数。
// 已不在订阅列表中的 feed（刷新期间被删除）的文章会被丢弃。
func (a *Archive) Merge(ctx context.Context, fresh []Article) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	feeds, err := a.store.LoadFeeds(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[string]struct{}, len(feeds))
	for _, f := range feeds {
		live[f.ID] = struct{}{}
	}
	filtered := make([]Article, 0, len(fresh))
	for _, art := range fresh {
		if _, ok := live[art.FeedID]; ok {
			filtered = append(filtered, art)
		}
	}

	existing, err := a.store.LoadArticles(ctx)
	if err != nil {
		return 0, err
	}
	merged := MergeArticles(existing, filtered, a.maxArticles)
	if err := a.store.SaveArticles(ctx, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// List 按分类过滤；空或 "all" 返回全部
func (a *Archive) List(ctx context.Context, category string) ([]Article, error) {
	articles, err := a.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" || category == "all" {
		if articles == nil {
			articles = []Article{}
		}
		return articles, nil
	}
	out := make([]Article, 0, len(articles))
	for i := range articles {
		if articles[i].HasCategory(category) {
			out = append(out, articles[i])
		}
	}
	return out, nil
}

// Categories 返回 DefaultCategory、归档内出现过的自动/手动分类与 extra 的并集，按字典序排序
func (a *Archive) Categories(ctx context.Context, extra ...string) ([]string, error) {
	articles, err := a.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	set := map[string]struct{}{DefaultCategory: {}}
	for _, art := range articles {
		for _, c := range art.Categories {
			set[c] = struct{}{}
		}
		for _, c := range art.ManualCategories {
			set[c] = struct{}{}
		}
	}
	for _, c := range extra {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// MergeArticles 以 ID 为键合并：fresh 覆盖同 ID 的旧记录（保留旧记录的手动分类，
// fresh 无日期时还保留旧的 Timestamp），
// 结果按 Timestamp 倒序，同一时间戳按 ID 升序，超过 limit 的最旧文章被丢弃。
func MergeArticles(existing, fresh []Article, limit int) []Article {
	out := make([]Article, 0, len(existing)+len(fresh))
	index := make(map[string]int, len(existing)+len(fresh))

	for _, art := range existing {
		if _, ok := index[art.ID]; ok {
			continue
		}
		index[art.ID] = len(out)
		out = append(out, art)
	}
	for _, art := range fresh {
		if i, ok := index[art.ID]; ok {
			prev := out[i]
			out[i] = art
			out[i].ManualCategories = prev.ManualCategories
			// 无日期条目沿用首次入库时间，避免每轮刷新都被顶到最前
			if art.Undated {
				out[i].Timestamp = prev.Timestamp
			}
			continue
		}
		index[art.ID] = len(out)
		out = append(out, art)
	}
	for i := range out {
		if out[i].ManualCategories == nil {
			out[i].ManualCategories = []string{}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
