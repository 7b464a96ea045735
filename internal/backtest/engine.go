package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradecrew/internal/calendar"
	"tradecrew/internal/decision"
	"tradecrew/internal/logger"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/pricing"
	"tradecrew/internal/stream"

	"github.com/shopspring/decimal"
)

const (
	DefaultLookaheadDays = 30
	DefaultCallDelay     = time.Second
)

// EngineConfig 描述回放引擎依赖。
type EngineConfig struct {
	Pipelines pipeline.Factory
	Calendars *calendar.Cache
	Prices    pricing.Source
	// CallDelay 是每个交易日处理后的固定间隔；0 表示不等待。
	CallDelay time.Duration
	// LookaheadDays 是价格预取在结束日之后延长的天数，用于取得次日收盘价。
	LookaheadDays int
	Reflection    bool
	SaveStates    bool
}

// Engine 逐交易日回放流水线决策并计算次日收益。
// 同一标的的交易日严格按顺序处理；不同标的之间的并发由调用方负责。
type Engine struct {
	pipelines  pipeline.Factory
	calendars  *calendar.Cache
	prices     *pricing.Cache
	delay      time.Duration
	lookahead  int
	reflection bool
	saveStates bool
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Pipelines == nil {
		return nil, errors.New("pipeline factory is required")
	}
	if cfg.Prices == nil {
		return nil, errors.New("price source is required")
	}
	if cfg.Calendars == nil {
		cfg.Calendars = calendar.NewCache(nil)
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = DefaultLookaheadDays
	}
	if cfg.CallDelay < 0 {
		cfg.CallDelay = 0
	}
	return &Engine{
		pipelines:  cfg.Pipelines,
		calendars:  cfg.Calendars,
		prices:     pricing.NewCache(cfg.Prices),
		delay:      cfg.CallDelay,
		lookahead:  cfg.LookaheadDays,
		reflection: cfg.Reflection,
		saveStates: cfg.SaveStates,
	}, nil
}

// Run 执行单标的回测。单日失败只记录日志并跳过；ctx 取消时返回已完成部分与 ctx 错误。
func (e *Engine) Run(ctx context.Context, req Request, hooks Hooks) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	market, _ := calendar.ParseMarket(string(req.Market))
	req.Market = market
	if len(req.Analysts) == 0 {
		req.Analysts = append([]string(nil), pipeline.DefaultAnalysts...)
	}
	start, _ := calendar.ParseDate(req.StartDate)
	end, _ := calendar.ParseDate(req.EndDate)

	cal := e.calendars.For(market)
	days := cal.Sessions(start, end)
	logger.Infof("[backtest] 开始回测 %s (%s) %s ~ %s，交易日=%d", req.Symbol, market.Info().Name, req.StartDate, req.EndDate, len(days))
	if len(days) == 0 {
		logger.Warnf("[backtest] %s 区间内没有交易日", req.Symbol)
		return emptyResult(req), nil
	}

	series, err := e.prices.Closes(ctx, market, req.Symbol, start, end.AddDate(0, 0, e.lookahead))
	if err != nil {
		return Result{}, fmt.Errorf("load prices for %s: %w", req.Symbol, err)
	}
	if series.Empty() {
		logger.Warnf("[backtest] %s 无法获取价格数据", req.Symbol)
		return emptyResult(req), nil
	}

	p, err := e.pipelines()
	if err != nil {
		return Result{}, fmt.Errorf("create pipeline: %w", err)
	}

	trades := make([]TradeRecord, 0, len(days))
	for idx, day := range days {
		if err := ctx.Err(); err != nil {
			return e.finish(req, len(days), trades), err
		}
		date := calendar.FormatDate(day)
		if hooks.OnProgress != nil {
			hooks.OnProgress(idx+1, len(days), date)
		}
		rec, err := e.replayDay(ctx, p, req, day, cal, series, hooks)
		if err != nil {
			var dayErr *DayReplayError
			if !errors.As(err, &dayErr) {
				dayErr = &DayReplayError{Date: date, Err: err}
			}
			logger.Warnf("[backtest] [%d/%d] %s 失败，跳过: %v", idx+1, len(days), date, dayErr.Err)
		} else {
			trades = append(trades, rec)
			logger.Infof("[backtest] [%d/%d] %s | %-4s | %.2f -> %.2f | %+.2f%%",
				idx+1, len(days), date, rec.Decision, rec.PriceAtDecision, rec.PriceNextDay, rec.ReturnPct)
			e.reflect(ctx, p, req, date, rec.ReturnPct)
		}
		if err := sleepCtx(ctx, e.delay); err != nil {
			return e.finish(req, len(days), trades), err
		}
	}

	res := e.finish(req, len(days), trades)
	logger.Infof("[backtest] 完成 %s：累计收益=%.2f%% 胜率=%.2f%% 最大回撤=%.2f%%",
		req.Symbol, res.Metrics.CumulativeReturn, res.Metrics.WinRate, res.Metrics.MaxDrawdown)
	return res, nil
}

func (e *Engine) finish(req Request, totalDays int, trades []TradeRecord) Result {
	res := emptyResult(req)
	res.TotalTradingDays = totalDays
	res.Trades = trades
	res.Metrics = Calculate(trades)
	return res
}

func (e *Engine) replayDay(ctx context.Context, p pipeline.Pipeline, req Request, day time.Time, cal calendar.Calendar, series pricing.Series, hooks Hooks) (rec TradeRecord, err error) {
	date := calendar.FormatDate(day)
	defer func() {
		if r := recover(); r != nil {
			err = &DayReplayError{Date: date, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var onSnapshot func(pipeline.Snapshot)
	if hooks.OnUpdate != nil {
		processed := stream.NewProcessed()
		onSnapshot = func(s pipeline.Snapshot) {
			for _, u := range stream.Extract(s, processed) {
				hooks.OnUpdate(req.Symbol, date, u.Stage, u.Content)
			}
		}
	}
	final, err := p.Run(ctx, pipelineRequest(req, date), onSnapshot)
	if err != nil {
		return TradeRecord{}, &DayReplayError{Date: date, Err: err}
	}
	if onSnapshot != nil {
		onSnapshot(final)
	}

	action := decision.Normalize(final.FinalTradeDecision)
	priceAt, _ := series.CloseOn(day)
	priceNext, _ := series.CloseOn(cal.Next(day))
	rec = TradeRecord{
		Date:            date,
		Symbol:          req.Symbol,
		Decision:        action,
		PriceAtDecision: priceAt,
		PriceNextDay:    priceNext,
		ReturnPct:       SingleReturn(action, priceAt, priceNext),
	}
	if e.saveStates {
		snap := final
		rec.FullState = &snap
	}
	return rec, nil
}

func (e *Engine) reflect(ctx context.Context, p pipeline.Pipeline, req Request, date string, returnPct float64) {
	if !e.reflection || returnPct == 0 {
		return
	}
	r, ok := p.(pipeline.Reflector)
	if !ok {
		return
	}
	if err := r.Reflect(ctx, pipelineRequest(req, date), returnPct); err != nil {
		logger.Debugf("[backtest] %s %s 反思失败: %v", req.Symbol, date, err)
	}
}

func pipelineRequest(req Request, date string) pipeline.Request {
	return pipeline.Request{
		Ticker:   req.Symbol,
		Date:     date,
		Market:   string(req.Market),
		Analysts: req.Analysts,
		Model:    req.Model,
		Provider: req.Provider,
	}
}

// SingleReturn 计算单日收益（%）：BUY 取涨幅，SELL 取跌幅，HOLD 为 0；决策日价格为 0 时收益为 0。
func SingleReturn(action decision.Action, priceAt, priceNext float64) float64 {
	if priceAt == 0 || !action.Active() {
		return 0
	}
	at := decimal.NewFromFloat(priceAt)
	change := decimal.NewFromFloat(priceNext).Sub(at).Div(at).Mul(decimal.NewFromInt(100))
	if action == decision.Sell {
		change = change.Neg()
	}
	f, _ := change.Float64()
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
