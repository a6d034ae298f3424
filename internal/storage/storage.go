package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound 引用的订阅源或文章不存在
var ErrNotFound = errors.New("not found")

// Store 持久化两个可独立加载的集合：订阅源与文章。
// 每次读写都是整个集合，调用方负责串行化 load-modify-save。
type Store interface {
	LoadFeeds(ctx context.Context) ([]Feed, error)
	SaveFeeds(ctx context.Context, feeds []Feed) error
	LoadArticles(ctx context.Context) ([]Article, error)
	SaveArticles(ctx context.Context, articles []Article) error
}

const (
	feedsFile    = "feeds.json"
	articlesFile = "articles.json"
)

// FileStore 以 JSON 文档保存到数据目录
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore 创建数据目录，并在文档不存在时写入空列表
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{dir: dir}
	for _, name := range []string{feedsFile, articlesFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
				return nil, fmt.Errorf("init %s: %w", name, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}
	log.Printf("file store ready at %s", dir)
	return s, nil
}

func (s *FileStore) LoadFeeds(ctx context.Context) ([]Feed, error) {
	var feeds []Feed
	if err := s.read(feedsFile, &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

func (s *FileStore) SaveFeeds(ctx context.Context, feeds []Feed) error {
	if feeds == nil {
		feeds = []Feed{}
	}
	return s.write(feedsFile, feeds)
}

func (s *FileStore) LoadArticles(ctx context.Context) ([]Article, error) {
	var articles []Article
	if err := s.read(articlesFile, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *FileStore) SaveArticles(ctx context.Context, articles []Article) error {
	if articles == nil {
		articles = []Article{}
	}
	return s.write(articlesFile, articles)
}

// read 文件不存在视为空集合；其它读取或解析错误直接返回，避免把损坏的文件当成空归档覆盖掉
func (s *FileStore) read(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write 先写临时文件再 rename，进程中途退出时不会留下半截 JSON
func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
