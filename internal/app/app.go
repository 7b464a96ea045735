package app

import (
	"context"
	"fmt"

	"tradecrew/internal/backtest"
	"tradecrew/internal/calendar"
	brcfg "tradecrew/internal/config"
	"tradecrew/internal/logger"
	"tradecrew/internal/pricing"
	analysishttp "tradecrew/internal/transport/http/analysis"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动分析与回测服务。
type App struct {
	cfg       *brcfg.Config
	calendars *calendar.Cache
	prices    *pricing.SQLiteSource
	engine    *backtest.Engine
	backtests *backtest.Service
	http      *analysishttp.Server
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run 启动 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	a.backtests.SetContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("analysis http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Engine 返回回测引擎，供命令行直接调用。
func (a *App) Engine() *backtest.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Calendars 返回共享的日历缓存。
func (a *App) Calendars() *calendar.Cache {
	if a == nil {
		return nil
	}
	return a.calendars
}

// Close 释放数据库连接等资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.prices != nil {
		if err := a.prices.Close(); err != nil {
			logger.Warnf("[app] 关闭价格数据源失败: %v", err)
		}
	}
}
