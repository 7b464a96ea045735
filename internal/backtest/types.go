package backtest

import (
	"fmt"
	"strings"

	"tradecrew/internal/calendar"
	"tradecrew/internal/decision"
	"tradecrew/internal/pipeline"
)

// Request 描述一次单标的回测。
type Request struct {
	Symbol    string          `json:"symbol"`
	Market    calendar.Market `json:"market"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Analysts  []string        `json:"analysts,omitempty"`
	Model     string          `json:"model,omitempty"`
	Provider  string          `json:"provider,omitempty"`
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if _, err := calendar.ParseMarket(string(r.Market)); err != nil {
		return err
	}
	start, err := calendar.ParseDate(r.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := calendar.ParseDate(r.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end_date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", r.EndDate, r.StartDate)
	}
	return nil
}

// Hooks 是回测过程中的可选回调。
type Hooks struct {
	// OnProgress 在每个交易日开始前调用，current 从 1 开始。
	OnProgress func(current, total int, date string)
	// OnUpdate 在流水线产出新阶段内容时调用。
	OnUpdate func(symbol, date, stage, content string)
}

// TradeRecord 记录单个交易日的决策与次日收益。
type TradeRecord struct {
	Date            string             `json:"date"`
	Symbol          string             `json:"symbol"`
	Decision        decision.Action    `json:"decision"`
	PriceAtDecision float64            `json:"price_at_decision"`
	PriceNextDay    float64            `json:"price_next_day"`
	ReturnPct       float64            `json:"return_pct"`
	FullState       *pipeline.Snapshot `json:"full_state,omitempty"`
}

// Result 是一次回测的完整输出。
type Result struct {
	Symbol           string          `json:"symbol"`
	Market           calendar.Market `json:"market"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	TotalTradingDays int             `json:"total_trading_days"`
	Metrics          Metrics         `json:"metrics"`
	Trades           []TradeRecord   `json:"trades"`
}

func emptyResult(req Request) Result {
	return Result{
		Symbol:    req.Symbol,
		Market:    req.Market,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Trades:    []TradeRecord{},
	}
}

// DayReplayError 表示某个交易日回放失败；该日被跳过，不影响其它日。
type DayReplayError struct {
	Date string
	Err  error
}

func (e *DayReplayError) Error() string {
	return fmt.Sprintf("replay %s: %v", e.Date, e.Err)
}

func (e *DayReplayError) Unwrap() error { return e.Err }
