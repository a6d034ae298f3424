package main

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/LJTian/FeedHub/internal/aggregator"
	"github.com/LJTian/FeedHub/internal/api"
	"github.com/LJTian/FeedHub/internal/collector"
	"github.com/LJTian/FeedHub/internal/config"
	"github.com/LJTian/FeedHub/internal/processor"
	"github.com/LJTian/FeedHub/internal/scheduler"
	"github.com/LJTian/FeedHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	archive := storage.NewArchive(store, cfg.MaxArticles)

	agg := aggregator.New(
		archive,
		collector.NewFeedFetcher(cfg.FeedTimeout, collector.NewHostRateLimiter(cfg.HostInterval)),
		collector.NewFeedDiscoverer(cfg.FeedTimeout),
		processor.NewProcessor(nil),
		aggregator.Options{Concurrency: cfg.FetchConcurrency},
	)

	// 定时全量刷新，启动时先执行一轮
	s, err := scheduler.New(cfg.CronSpec, agg)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(agg)
	apiServer.RegisterRoutes(r)

	// 前端静态资源目录存在时一并托管
	if cfg.WebRoot != "" {
		if info, err := os.Stat(cfg.WebRoot); err == nil && info.IsDir() {
			indexFile := filepath.Join(cfg.WebRoot, "index.html")
			r.NoRoute(func(c *gin.Context) {
				if c.Request.Method != http.MethodGet {
					c.Status(http.StatusNotFound)
					return
				}
				path := filepath.Join(cfg.WebRoot, filepath.Clean("/"+c.Request.URL.Path))
				if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
					c.File(path)
					return
				}
				c.File(indexFile)
			})
		}
	}

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
