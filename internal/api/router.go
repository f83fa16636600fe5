package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/LJTian/TrendingNews/internal/pipeline"
	"github.com/LJTian/TrendingNews/internal/processor"
	"github.com/LJTian/TrendingNews/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
	defaultTop     = 10
	maxTop         = 100
)

// ArticleReader 只读访问当前文章集合
type ArticleReader interface {
	Latest(ctx context.Context) ([]processor.Article, error)
	ByID(ctx context.Context, newsID string) (*processor.Article, error)
	BySource(ctx context.Context, source string) ([]processor.Article, error)
	Top(ctx context.Context, limit int, by storage.SortBy) ([]processor.Article, error)
	Sources(ctx context.Context) ([]string, error)
}

// Runner 手动触发采集
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
	State() pipeline.State
}

// RunHistory 运行历史，未配置 PostgreSQL 时为 nil
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

type Options struct {
	BasicAuthUser string
	BasicAuthPass string
}

type Server struct {
	articles ArticleReader
	runner   Runner
	runs     RunHistory
	log      logrus.FieldLogger
}

func NewServer(articles ArticleReader, runner Runner, runs RunHistory, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{articles: articles, runner: runner, runs: runs, log: log}
}

// NewRouter 创建带中间件的 gin 引擎并注册所有路由
func NewRouter(s *Server, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	// 若配置了全局访问密码，则启用 Basic Auth 保护（健康检查仍然免认证）
	if opts.BasicAuthUser != "" && opts.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(opts.BasicAuthUser, opts.BasicAuthPass))
	}
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	legacy := r.Group("/api")
	{
		legacy.GET("/health", s.health)
		legacy.GET("/scrape", s.scrape)
		legacy.POST("/scrape", s.scrape)
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/articles/top", s.topArticles)
		v1.GET("/articles/:id", s.getArticle)
		v1.GET("/sources", s.listSources)
		v1.GET("/sources/:name/articles", s.sourceArticles)
		v1.GET("/runs", s.listRuns)
	}
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

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (s *Server) health(c *gin.Context) {
	ok(c, gin.H{
		"status": "ok",
		"state":  s.runner.State().String(),
	})
}

// scrape 同步执行一轮采集，客户端断开不会中断本轮
func (s *Server) scrape(c *gin.Context) {
	res, err := s.runner.Run(context.WithoutCancel(c.Request.Context()))

	var (
		providerErr *pipeline.ProviderError
		storeErr    *pipeline.StoreError
	)
	switch {
	case err == nil:
		ok(c, res)
	case errors.Is(err, pipeline.ErrRunInProgress):
		fail(c, http.StatusConflict, "run_in_progress", "a collect job is already running")
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{"code": "provider_error", "message": err.Error(), "data": res})
	case errors.As(err, &storeErr):
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_error", "message": err.Error(), "data": res})
	default:
		s.internalError(c, err)
	}
}

func (s *Server) listArticles(c *gin.Context) {
	page := queryInt(c, "page", 1, 1, 0)
	perPage := queryInt(c, "per_page", defaultPerPage, 1, maxPerPage)

	all, err := s.articles.Latest(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}

	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	ok(c, gin.H{
		"items":    all[start:end],
		"total":    len(all),
		"page":     page,
		"per_page": perPage,
	})
}

func (s *Server) topArticles(c *gin.Context) {
	by, valid := storage.ParseSort(c.Query("sort"))
	if !valid {
		fail(c, http.StatusBadRequest, "invalid_argument", "sort must be recent or rank")
		return
	}
	limit := queryInt(c, "limit", defaultTop, 1, maxTop)

	items, err := s.articles.Top(c.Request.Context(), limit, by)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, items)
}

func (s *Server) getArticle(c *gin.Context) {
	a, err := s.articles.ByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "article not found")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, a)
}

func (s *Server) listSources(c *gin.Context) {
	names, err := s.articles.Sources(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, names)
}

func (s *Server) sourceArticles(c *gin.Context) {
	items, err := s.articles.BySource(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, items)
}

func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		fail(c, http.StatusNotFound, "not_found", "run history is disabled")
		return
	}
	limit := queryInt(c, "limit", 20, 1, 200)
	list, err := s.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, list)
}

// queryInt 解析失败时使用默认值，并限制在 [lo, hi] 内；hi 为 0 表示不设上限
func queryInt(c *gin.Context, key string, def, lo, hi int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	if v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}
