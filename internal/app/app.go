package app

import (
	"context"
	"fmt"
	"time"

	"monorail/internal/config"
	"monorail/internal/fanout"
	gwmonorail "monorail/internal/gateway/monorail"
	"monorail/internal/gateway/notifier"
	"monorail/internal/logger"
	"monorail/internal/server"
	"monorail/internal/store"
	"monorail/internal/store/sqlite"
	"monorail/internal/trade"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg      *config.Config
	failures store.FailureStore
	server   *server.Server
	registry *fanout.Registry
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	failures, err := sqlite.NewSqliteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("初始化失败记录库失败: %w", err)
	}

	registry := fanout.NewRegistry()
	var chat notifier.TextNotifier
	if cfg.Telegram.Enabled {
		chat = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		logger.Infof("Telegram 告警已启用 chat_id=%s", cfg.Telegram.ChatID)
	} else {
		logger.Warnf("Telegram 告警未启用，失败事件只写库并推送 webhook")
	}
	notify := fanout.New(chat, registry, time.Duration(cfg.Webhook.TimeoutSeconds)*time.Second)

	upstream, err := gwmonorail.NewClient(cfg.Upstream)
	if err != nil {
		failures.Close()
		return nil, fmt.Errorf("初始化 monorail client 失败: %w", err)
	}
	trades := trade.NewService(upstream, failures, notify)

	srv, err := server.NewServer(server.Config{
		Addr:     cfg.App.Addr,
		Trades:   trades,
		Quotes:   upstream,
		Failures: failures,
		Registry: registry,
	})
	if err != nil {
		failures.Close()
		return nil, fmt.Errorf("初始化 HTTP server 失败: %w", err)
	}

	return &App{cfg: cfg, failures: failures, server: srv, registry: registry}, nil
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("monorail 网关启动 addr=%s upstream=%s", a.server.Addr(), a.cfg.Upstream.BaseURL)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	if closeErr := a.failures.Close(); closeErr != nil {
		logger.Warnf("关闭失败记录库出错: %v", closeErr)
	}
	return err
}
