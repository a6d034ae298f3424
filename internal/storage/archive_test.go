package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func newTestArchive(t *testing.T, max int) (*Archive, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	return NewArchive(store, max), store
}

func article(id, feedID string, ts int64) Article {
	return Article{
		ID:               id,
		FeedID:           feedID,
		Title:            id,
		Timestamp:        ts,
		Categories:       []string{DefaultCategory},
		ManualCategories: []string{},
	}
}

func TestFileStoreInitAndMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	for _, name := range []string{feedsFile, articlesFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("%s not created: %v", name, err)
		}
		if string(data) != "[]" {
			t.Fatalf("%s = %q, want []", name, data)
		}
	}

	// 文件被删掉后视为空集合
	if err := os.Remove(filepath.Join(dir, articlesFile)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	articles, err := store.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected empty articles, got %d", len(articles))
	}
}

func TestFileStoreCorruptFileIsError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, feedsFile), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.LoadFeeds(context.Background()); err == nil {
		t.Fatalf("expected decode error for corrupt feeds file")
	}
}

func TestFileStoreRoundTripKeepsOrder(t *testing.T) {
	_, store := newTestArchive(t, 10)
	ctx := context.Background()
	in := []Feed{{ID: "b", URL: "http://b"}, {ID: "a", URL: "http://a"}}
	if err := store.SaveFeeds(ctx, in); err != nil {
		t.Fatalf("SaveFeeds: %v", err)
	}
	out, err := store.LoadFeeds(ctx)
	if err != nil {
		t.Fatalf("LoadFeeds: %v", err)
	}
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "a" {
		t.Fatalf("order not preserved: %+v", out)
	}
}

func TestMergeArticlesUpsertKeepsManualCategories(t *testing.T) {
	old := article("f1-a", "f1", 100)
	old.ManualCategories = []string{"Favorites"}
	old.Title = "old title"

	fresh := article("f1-a", "f1", 100)
	fresh.Title = "new title"

	merged := MergeArticles([]Article{old}, []Article{fresh, article("f1-b", "f1", 200)}, 10)
	if len(merged) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(merged))
	}
	if merged[0].ID != "f1-b" {
		t.Fatalf("newest should be first, got %q", merged[0].ID)
	}
	got := merged[1]
	if got.Title != "new title" {
		t.Fatalf("fresh fields should replace old ones, title = %q", got.Title)
	}
	if !reflect.DeepEqual(got.ManualCategories, []string{"Favorites"}) {
		t.Fatalf("manual categories lost: %v", got.ManualCategories)
	}
}

func TestMergeArticlesDropsDuplicateIDs(t *testing.T) {
	existing := []Article{article("x", "f", 1), article("x", "f", 1)}
	merged := MergeArticles(existing, []Article{article("x", "f", 1)}, 10)
	if len(merged) != 1 {
		t.Fatalf("duplicate ids should collapse, got %d", len(merged))
	}
}

func TestMergeArticlesRetentionKeepsNewest(t *testing.T) {
	const limit = DefaultMaxArticles
	var existing, fresh []Article
	for i := 0; i < 700; i++ {
		existing = append(existing, article(fmt.Sprintf("old-%d", i), "f", int64(i*2)))
	}
	for i := 0; i < 700; i++ {
		fresh = append(fresh, article(fmt.Sprintf("new-%d", i), "f", int64(i*2+1)))
	}

	merged := MergeArticles(existing, fresh, limit)
	if len(merged) != limit {
		t.Fatalf("archive size = %d, want %d", len(merged), limit)
	}
	// 共 1400 条，时间戳 0..1399，应保留 400..1399
	for i, a := range merged {
		want := int64(1399 - i)
		if a.Timestamp != want {
			t.Fatalf("merged[%d].Timestamp = %d, want %d", i, a.Timestamp, want)
		}
	}
}

func TestMergeArticlesTieBreakIsDeterministic(t *testing.T) {
	a := MergeArticles(nil, []Article{article("b", "f", 5), article("a", "f", 5)}, 10)
	b := MergeArticles(nil, []Article{article("a", "f", 5), article("b", "f", 5)}, 10)
	if a[0].ID != "a" || b[0].ID != "a" {
		t.Fatalf("equal timestamps should order by id: %v / %v", a[0].ID, b[0].ID)
	}
}

func TestArchiveMergeDropsArticlesOfRemovedFeeds(t *testing.T) {
	archive, _ := newTestArchive(t, 10)
	ctx := context.Background()
	if err := archive.AddFeed(ctx, Feed{ID: "f1"}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	n, err := archive.Merge(ctx, []Article{article("f1-a", "f1", 1), article("gone-a", "gone", 2)})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if n != 1 {
		t.Fatalf("archive size = %d, want 1", n)
	}
}

func TestArchiveRemoveFeedCascades(t *testing.T) {
	archive, _ := newTestArchive(t, 10)
	ctx := context.Background()
	for _, id := range []string{"f1", "f2"} {
		if err := archive.AddFeed(ctx, Feed{ID: id}); err != nil {
			t.Fatalf("AddFeed: %v", err)
		}
	}
	if _, err := archive.Merge(ctx, []Article{
		article("f1-a", "f1", 1), article("f1-b", "f1", 2), article("f2-a", "f2", 3),
	}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if err := archive.RemoveFeed(ctx, "f1"); err != nil {
		t.Fatalf("RemoveFeed: %v", err)
	}
	articles, err := archive.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(articles) != 1 || articles[0].FeedID != "f2" {
		t.Fatalf("cascade removed wrong articles: %+v", articles)
	}
	feeds, _ := archive.Feeds(ctx)
	if len(feeds) != 1 || feeds[0].ID != "f2" {
		t.Fatalf("feed not removed: %+v", feeds)
	}

	if err := archive.RemoveFeed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveUpdateManualCategories(t *testing.T) {
	archive, _ := newTestArchive(t, 10)
	ctx := context.Background()
	if err := archive.SaveAll(ctx, []Article{article("a", "f", 1)}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	if err := archive.UpdateManualCategories(ctx, "a", []string{" Later ", "", "Work"}); err != nil {
		t.Fatalf("UpdateManualCategories: %v", err)
	}
	got, err := archive.FindByID(ctx, "a")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !reflect.DeepEqual(got.ManualCategories, []string{"Later", "Work"}) {
		t.Fatalf("ManualCategories = %v", got.ManualCategories)
	}

	if err := archive.UpdateManualCategories(ctx, "missing", []string{"x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := archive.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := archive.UpdateManualCategories(ctx, "a", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = archive.FindByID(ctx, "a")
	if got.ManualCategories == nil || len(got.ManualCategories) != 0 {
		t.Fatalf("nil labels should clear to empty list, got %v", got.ManualCategories)
	}
}

func TestArchiveListAndCategories(t *testing.T) {
	archive, _ := newTestArchive(t, 10)
	ctx := context.Background()

	a := article("a", "f", 3)
	a.Categories = []string{"Technology"}
	b := article("b", "f", 2)
	b.Categories = []string{"Sports"}
	b.ManualCategories = []string{"Later"}
	c := article("c", "f", 1)
	if err := archive.SaveAll(ctx, []Article{a, b, c}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	all, err := archive.List(ctx, "all")
	if err != nil || len(all) != 3 {
		t.Fatalf("List(all) = %d, %v", len(all), err)
	}
	if empty, _ := archive.List(ctx, ""); len(empty) != 3 {
		t.Fatalf("List(\"\") should return everything")
	}
	later, _ := archive.List(ctx, "Later")
	if len(later) != 1 || later[0].ID != "b" {
		t.Fatalf("manual category filter failed: %+v", later)
	}
	tech, _ := archive.List(ctx, "Technology")
	if len(tech) != 1 || tech[0].ID != "a" {
		t.Fatalf("auto category filter failed: %+v", tech)
	}

	cats, err := archive.Categories(ctx, "Science", "Technology")
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	want := []string{"General", "Later", "Science", "Sports", "Technology"}
	if !reflect.DeepEqual(cats, want) {
		t.Fatalf("Categories = %v, want %v", cats, want)
	}
}

func TestArchiveConcurrentEditsAreSerialized(t *testing.T) {
	archive, _ := newTestArchive(t, 100)
	ctx := context.Background()
	if err := archive.AddFeed(ctx, Feed{ID: "f"}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := archive.Merge(ctx, []Article{article(fmt.Sprintf("f-%d", i), "f", int64(i))}); err != nil {
				t.Errorf("Merge %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	articles, _ := archive.LoadAll(ctx)
	if len(articles) != 20 {
		t.Fatalf("lost updates: got %d articles, want 20", len(articles))
	}
}

func TestArchiveRemoveByFeed(t *testing.T) {
	archive, _ := newTestArchive(t, 10)
	ctx := context.Background()
	if err := archive.SaveAll(ctx, []Article{article("a", "f1", 1), article("b", "f2", 2)}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if err := archive.RemoveByFeed(ctx, "f1"); err != nil {
		t.Fatalf("RemoveByFeed: %v", err)
	}
	// 不存在的 feed 不报错
	if err := archive.RemoveByFeed(ctx, "nope"); err != nil {
		t.Fatalf("RemoveByFeed unknown: %v", err)
	}
	articles, _ := archive.LoadAll(ctx)
	if len(articles) != 1 || articles[0].ID != "b" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
}

func TestMergeArticlesUndatedKeepsArchivedTimestamp(t *testing.T) {
	old := article("f-a", "f", 100)
	old.ManualCategories = []string{"Later"}

	undated := article("f-a", "f", 900)
	undated.Undated = true
	undated.Title = "retitled"

	merged := MergeArticles([]Article{old, article("f-b", "f", 500)}, []Article{undated}, 10)
	if merged[1].ID != "f-a" || merged[1].Timestamp != 100 {
		t.Fatalf("undated re-fetch should keep first timestamp: %+v", merged)
	}
	if merged[1].Title != "retitled" {
		t.Fatalf("other fields should still be refreshed, title = %q", merged[1].Title)
	}

	dated := article("f-a", "f", 900)
	merged = MergeArticles([]Article{old}, []Article{dated}, 10)
	if merged[0].Timestamp != 900 {
		t.Fatalf("dated re-fetch should take the source timestamp, got %d", merged[0].Timestamp)
	}

	// 首次入库的无日期条目直接使用入库时间
	first := MergeArticles(nil, []Article{undated}, 10)
	if first[0].Timestamp != 900 {
		t.Fatalf("new undated article timestamp = %d, want 900", first[0].Timestamp)
	}
}

// failingStore 让 SaveArticles 失败，其余操作透传
type failingStore struct {
	Store
}

func (failingStore) SaveArticles(ctx context.Context, articles []Article) error {
	return errors.New("disk full")
}

func TestArchiveRemoveFeedKeepsFeedWhenCascadeFails(t *testing.T) {
	good, _ := newTestArchive(t, 10)
	ctx := context.Background()
	if err := good.AddFeed(ctx, Feed{ID: "f1"}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if _, err := good.Merge(ctx, []Article{article("f1-a", "f1", 1)}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	broken := NewArchive(failingStore{Store: good.store}, 10)
	if err := broken.RemoveFeed(ctx, "f1"); err == nil {
		t.Fatalf("expected error when articles cannot be saved")
	}

	feeds, _ := good.Feeds(ctx)
	if len(feeds) != 1 || feeds[0].ID != "f1" {
		t.Fatalf("feed should survive a failed cascade: %+v", feeds)
	}
	articles, _ := good.LoadAll(ctx)
	if len(articles) != 1 {
		t.Fatalf("articles should be untouched, got %d", len(articles))
	}
}
