package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"monorail/internal/fanout"
	gwmonorail "monorail/internal/gateway/monorail"
	"monorail/internal/logger"
	"monorail/internal/store"
	"monorail/internal/trade"

	"github.com/gin-gonic/gin"
)

// Server 提供最小化的交易网关 HTTP 服务（报价透传 + 交易代理 + 失败查询 + webhook 注册）。
type Server struct {
	addr   string
	router *gin.Engine
}

// QuoteClient 是报价透传依赖的最小接口。
type QuoteClient interface {
	Quote(ctx context.Context, p gwmonorail.QuoteParams) (*gwmonorail.Response, error)
}

// Config 描述 HTTP 服务依赖。
type Config struct {
	Addr     string
	Trades   *trade.Service
	Quotes   QuoteClient
	Failures store.FailureStore
	Registry *fanout.Registry
}

// NewServer 构建 HTTP server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Trades == nil {
		return nil, errors.New("trade service 不能为空")
	}
	if cfg.Failures == nil {
		return nil, errors.New("failure store 不能为空")
	}
	if cfg.Registry == nil {
		return nil, errors.New("webhook registry 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r := &Router{Trades: cfg.Trades, Quotes: cfg.Quotes, Failures: cfg.Failures, Registry: cfg.Registry}
	r.Register(router)

	return &Server{addr: cfg.Addr, router: router}, nil
}

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

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler 暴露底层 handler，供测试直接驱动。
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
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
