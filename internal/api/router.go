package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/LJTian/FeedHub/internal/aggregator"
	"github.com/LJTian/FeedHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	agg *aggregator.Aggregator
}

func NewServer(agg *aggregator.Aggregator) *Server {
	return &Server{agg: agg}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := r.Group("/api")
	{
		g.GET("/feeds", s.listFeeds)
		g.POST("/feeds", s.addFeed)
		g.DELETE("/feeds/:id", s.deleteFeed)
		g.POST("/feeds/:id/refresh", s.refreshFeed)
		g.GET("/articles", s.listArticles)
		g.PATCH("/articles/:id/categories", s.setManualCategories)
		g.GET("/categories", s.listCategories)
		g.POST("/refresh", s.refresh)
	}
}

type addFeedRequest struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

type categoriesRequest struct {
	Categories []string `json:"categories"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listFeeds(c *gin.Context) {
	feeds, err := s.agg.ListFeeds(c.Request.Context())
	if err != nil {
		internalError(c, "list feeds", err)
		return
	}
	ok(c, feeds)
}

func (s *Server) addFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		fail(c, http.StatusBadRequest, "bad_request", "URL is required")
		return
	}

	feed, err := s.agg.AddFeed(c.Request.Context(), req.URL, req.Title, req.Category)
	if errors.Is(err, aggregator.ErrInvalidSource) {
		fail(c, http.StatusBadRequest, "invalid_source", "Invalid RSS feed URL")
		return
	}
	if err != nil {
		internalError(c, "add feed", err)
		return
	}
	ok(c, feed)
}

func (s *Server) deleteFeed(c *gin.Context) {
	err := s.agg.DeleteFeed(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "Feed not found")
		return
	}
	if err != nil {
		internalError(c, "delete feed", err)
		return
	}
	ok(c, gin.H{"success": true})
}

func (s *Server) listArticles(c *gin.Context) {
	articles, err := s.agg.ListArticles(c.Request.Context(), c.Query("category"))
	if err != nil {
		internalError(c, "list articles", err)
		return
	}
	ok(c, articles)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.agg.ListCategories(c.Request.Context())
	if err != nil {
		internalError(c, "list categories", err)
		return
	}
	ok(c, categories)
}

func (s *Server) setManualCategories(c *gin.Context) {
	var req categoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	err := s.agg.SetManualCategories(c.Request.Context(), c.Param("id"), req.Categories)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "Article not found")
		return
	}
	if err != nil {
		internalError(c, "set categories", err)
		return
	}
	ok(c, gin.H{"success": true})
}

func (s *Server) refreshFeed(c *gin.Context) {
	n, err := s.agg.RefreshFeed(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "Feed not found")
		return
	}
	if err != nil {
		// 源本身抓取失败属于上游问题，不算服务端错误
		fail(c, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	ok(c, gin.H{"success": true, "fetched": n})
}

func (s *Server) refresh(c *gin.Context) {
	stats, err := s.agg.RefreshAll(c.Request.Context())
	if err != nil {
		internalError(c, "refresh", err)
		return
	}
	ok(c, gin.H{"success": true, "stats": stats})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func internalError(c *gin.Context, op string, err error) {
	log.Printf("api: %s error: %v", op, err)
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}
