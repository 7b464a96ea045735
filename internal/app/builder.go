package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"tradecrew/internal/backtest"
	"tradecrew/internal/calendar"
	brcfg "tradecrew/internal/config"
	"tradecrew/internal/logger"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/pricing"
	"tradecrew/internal/stream"
	analysishttp "tradecrew/internal/transport/http/analysis"
)

func build(cfg *brcfg.Config) (*App, error) {
	calendars, err := buildCalendars(cfg.Calendar)
	if err != nil {
		return nil, err
	}
	prices, err := pricing.NewSQLiteSource(cfg.Pricing.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("init price source: %w", err)
	}
	factory := pipeline.NewFactory(pipeline.ClientConfig{
		BaseURL: cfg.Pipeline.BaseURL,
		Timeout: cfg.Pipeline.Timeout(),
	})
	engine, err := backtest.NewEngine(backtest.EngineConfig{
		Pipelines:     factory,
		Calendars:     calendars,
		Prices:        prices,
		CallDelay:     cfg.Backtest.CallDelay(),
		LookaheadDays: cfg.Backtest.PriceLookaheadDays,
		Reflection:    cfg.Backtest.Reflection,
		SaveStates:    cfg.Backtest.SaveStates,
	})
	if err != nil {
		_ = prices.Close()
		return nil, err
	}
	svc, err := backtest.NewService(backtest.ServiceConfig{
		Engine:        engine,
		MaxConcurrent: cfg.Backtest.MaxConcurrent,
	})
	if err != nil {
		_ = prices.Close()
		return nil, err
	}
	server, err := analysishttp.NewServer(analysishttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Pipelines: factory,
		Backtests: svc,
		Stream: stream.Options{
			Heartbeat:    cfg.Stream.HeartbeatInterval(),
			Poll:         cfg.Stream.PollInterval(),
			Buffer:       cfg.Stream.Buffer,
			TerminalNode: cfg.Pipeline.TerminalNode,
		},
		DefaultMarket:   cfg.Pipeline.DefaultMarket,
		DefaultAnalysts: cfg.Pipeline.DefaultAnalysts,
		Models:          ModelResolver(cfg.Pipeline),
	})
	if err != nil {
		_ = prices.Close()
		return nil, err
	}
	return &App{
		cfg:       cfg,
		calendars: calendars,
		prices:    prices,
		engine:    engine,
		backtests: svc,
		http:      server,
		Summary:   newStartupSummary(cfg),
	}, nil
}

// buildCalendars 加载日历文件；文件不存在时所有市场按工作日推算。
func buildCalendars(cfg brcfg.CalendarConfig) (*calendar.Cache, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return calendar.NewCache(nil), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warnf("[app] 日历文件 %s 不存在，按工作日推算交易日", path)
		return calendar.NewCache(nil), nil
	}
	registry, err := calendar.NewRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load calendar registry: %w", err)
	}
	return calendar.NewCache(registry), nil
}

// ModelResolver 把配置中的模型预设暴露给 HTTP 层与命令行。
func ModelResolver(cfg brcfg.PipelineConfig) analysishttp.ModelResolver {
	return func(name string) (string, string) {
		model, preset := cfg.ResolveModel(name)
		return model, preset.Provider
	}
}
