package analysishttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradecrew/internal/backtest"
	"tradecrew/internal/logger"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/stream"

	"github.com/gin-gonic/gin"
)

// ModelResolver 把请求中的模型名解析为实际模型与提供方。
type ModelResolver func(name string) (model, provider string)

// ServerConfig 描述分析 HTTP 服务依赖。
type ServerConfig struct {
	Addr      string
	Pipelines pipeline.Factory
	// Backtests 为空时不挂载 /api/backtest 路由。
	Backtests       *backtest.Service
	Stream          stream.Options
	DefaultMarket   string
	DefaultAnalysts []string
	Models          ModelResolver
}

// Server 提供 /analyze、/analyze/stream、回测任务与健康检查接口。
type Server struct {
	addr   string
	router *gin.Engine
	cfg    ServerConfig
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipelines == nil {
		return nil, errors.New("analysis http server requires pipeline factory")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.DefaultMarket == "" {
		cfg.DefaultMarket = "US"
	}
	if len(cfg.DefaultAnalysts) == 0 {
		cfg.DefaultAnalysts = pipeline.DefaultAnalysts
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, router: router, cfg: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/analyze", s.handleAnalyze)
	s.router.POST("/analyze/stream", s.handleAnalyzeStream)
	if s.cfg.Backtests != nil {
		api := s.router.Group("/api/backtest")
		api.POST("/runs", s.handleRunStart)
		api.GET("/runs", s.handleRunList)
		api.GET("/runs/:id", s.handleRunDetail)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "analysis"})
}

// requestLogger 记录每个请求的方法、路径、状态与耗时。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Handler 返回底层 http.Handler，便于测试或嵌入。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[http] 分析服务监听 %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
