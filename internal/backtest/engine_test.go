package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradecrew/internal/calendar"
	"tradecrew/internal/decision"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu        sync.Mutex
	decisions map[string]string
	failures  map[string]error
	panicOn   string
	reflected []float64
	dates     []string
}

func (f *fakePipeline) Run(ctx context.Context, req pipeline.Request, onSnapshot func(pipeline.Snapshot)) (pipeline.Snapshot, error) {
	f.mu.Lock()
	f.dates = append(f.dates, req.Date)
	f.mu.Unlock()
	if req.Date == f.panicOn {
		panic("graph exploded")
	}
	if err := f.failures[req.Date]; err != nil {
		return pipeline.Snapshot{}, err
	}
	partial := pipeline.Snapshot{MarketReport: "report " + req.Date}
	if onSnapshot != nil {
		onSnapshot(partial)
	}
	partial.FinalTradeDecision = f.decisions[req.Date]
	return partial, nil
}

func (f *fakePipeline) StreamTokens(context.Context, pipeline.Request) (<-chan pipeline.TokenEvent, error) {
	return nil, errors.New("not supported")
}

func (f *fakePipeline) Reflect(ctx context.Context, req pipeline.Request, returnPct float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reflected = append(f.reflected, returnPct)
	return nil
}

type staticSource struct {
	mu     sync.Mutex
	calls  int
	series pricing.Series
}

func (s *staticSource) Closes(context.Context, calendar.Market, string, time.Time, time.Time) (pricing.Series, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.series, nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	require.NoError(t, err)
	return d
}

func weekSeries(t *testing.T) pricing.Series {
	return pricing.NewSeries([]pricing.Point{
		{Date: mustDate(t, "2024-01-08"), Close: 100},
		{Date: mustDate(t, "2024-01-09"), Close: 110},
		{Date: mustDate(t, "2024-01-10"), Close: 99},
		{Date: mustDate(t, "2024-01-11"), Close: 99},
		{Date: mustDate(t, "2024-01-12"), Close: 100},
		{Date: mustDate(t, "2024-01-15"), Close: 105},
	})
}

func newTestEngine(t *testing.T, p *fakePipeline, src pricing.Source, mutate func(*EngineConfig)) *Engine {
	t.Helper()
	cfg := EngineConfig{
		Pipelines:  func() (pipeline.Pipeline, error) { return p, nil },
		Calendars:  calendar.NewCache(nil),
		Prices:     src,
		Reflection: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func weekRequest() Request {
	return Request{Symbol: "AAPL", Market: "us", StartDate: "2024-01-08", EndDate: "2024-01-12"}
}

func TestEngineRunIsolatesDayFailures(t *testing.T) {
	p := &fakePipeline{
		decisions: map[string]string{"2024-01-08": "BUY", "2024-01-09": "I would SELL", "2024-01-12": ""},
		failures:  map[string]error{"2024-01-10": errors.New("upstream exploded")},
		panicOn:   "2024-01-11",
	}
	src := &staticSource{series: weekSeries(t)}
	e := newTestEngine(t, p, src, nil)

	var progress []string
	var marketUpdates int
	res, err := e.Run(context.Background(), weekRequest(), Hooks{
		OnProgress: func(current, total int, date string) {
			assert.Equal(t, 5, total)
			progress = append(progress, date)
		},
		OnUpdate: func(symbol, date, stage, content string) {
			assert.Equal(t, "AAPL", symbol)
			if stage == pipeline.StageMarketAnalyst {
				marketUpdates++
				assert.Equal(t, "report "+date, content)
			}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, calendar.MarketUS, res.Market)
	assert.Equal(t, 5, res.TotalTradingDays)
	assert.Len(t, progress, 5)
	assert.Equal(t, 3, marketUpdates)
	require.Len(t, res.Trades, 3)

	assert.Equal(t, "2024-01-08", res.Trades[0].Date)
	assert.Equal(t, decision.Buy, res.Trades[0].Decision)
	assert.InDelta(t, 10.0, res.Trades[0].ReturnPct, 1e-9)

	assert.Equal(t, decision.Sell, res.Trades[1].Decision)
	assert.InDelta(t, 10.0, res.Trades[1].ReturnPct, 1e-9)

	assert.Equal(t, "2024-01-12", res.Trades[2].Date)
	assert.Equal(t, decision.Hold, res.Trades[2].Decision)
	assert.Equal(t, 105.0, res.Trades[2].PriceNextDay)
	assert.Zero(t, res.Trades[2].ReturnPct)
	assert.Nil(t, res.Trades[2].FullState)

	assert.Equal(t, 2, res.Metrics.ActiveTrades)
	assert.InDelta(t, 100.0, res.Metrics.WinRate, 1e-9)
	assert.InDelta(t, 20.0, res.Metrics.CumulativeReturn, 1e-9)
	assert.Len(t, p.reflected, 2)
	assert.Equal(t, []string{"2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12"}, p.dates)
}

func TestEngineEmptyRange(t *testing.T) {
	p := &fakePipeline{}
	src := &staticSource{series: weekSeries(t)}
	e := newTestEngine(t, p, src, nil)

	req := weekRequest()
	req.StartDate, req.EndDate = "2024-01-13", "2024-01-14"
	res, err := e.Run(context.Background(), req, Hooks{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalTradingDays)
	assert.Empty(t, res.Trades)
	assert.NotNil(t, res.Trades)
	assert.Equal(t, Metrics{}, res.Metrics)
	assert.Zero(t, src.calls)
	assert.Empty(t, p.dates)
}

func TestEngineEmptyPriceSeries(t *testing.T) {
	p := &fakePipeline{}
	e := newTestEngine(t, p, &staticSource{}, nil)
	res, err := e.Run(context.Background(), weekRequest(), Hooks{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalTradingDays)
	assert.Empty(t, p.dates)
}

func TestEngineCachesPricesAndSavesStates(t *testing.T) {
	p := &fakePipeline{decisions: map[string]string{}}
	src := &staticSource{series: weekSeries(t)}
	e := newTestEngine(t, p, src, func(cfg *EngineConfig) {
		cfg.SaveStates = true
		cfg.Reflection = false
	})
	for i := 0; i < 2; i++ {
		res, err := e.Run(context.Background(), weekRequest(), Hooks{})
		require.NoError(t, err)
		require.Len(t, res.Trades, 5)
		require.NotNil(t, res.Trades[0].FullState)
		assert.Equal(t, "report 2024-01-08", res.Trades[0].FullState.MarketReport)
	}
	assert.Equal(t, 1, src.calls)
	assert.Empty(t, p.reflected)
}

func TestEngineRejectsInvalidRequest(t *testing.T) {
	e := newTestEngine(t, &fakePipeline{}, &staticSource{}, nil)
	for _, req := range []Request{
		{Market: "US", StartDate: "2024-01-01", EndDate: "2024-01-02"},
		{Symbol: "AAPL", Market: "LSE", StartDate: "2024-01-01", EndDate: "2024-01-02"},
		{Symbol: "AAPL", Market: "US", StartDate: "2024-01-05", EndDate: "2024-01-02"},
		{Symbol: "AAPL", Market: "US", StartDate: "01/02/2024", EndDate: "2024-01-02"},
	} {
		_, err := e.Run(context.Background(), req, Hooks{})
		assert.Error(t, err)
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	p := &fakePipeline{decisions: map[string]string{"2024-01-08": "BUY"}}
	e := newTestEngine(t, p, &staticSource{series: weekSeries(t)}, func(cfg *EngineConfig) {
		cfg.CallDelay = time.Hour
	})
	ctx, cancel := context.WithCancel(context.Background())
	res, err := e.Run(ctx, weekRequest(), Hooks{
		OnProgress: func(int, int, string) { cancel() },
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Trades, 1)
	assert.Equal(t, 5, res.TotalTradingDays)
}

func TestRunManySkipsFailures(t *testing.T) {
	p := &fakePipeline{decisions: map[string]string{}}
	e := newTestEngine(t, p, &staticSource{series: weekSeries(t)}, nil)
	tmpl := weekRequest()
	results, err := e.RunMany(context.Background(), tmpl, []string{"AAPL", " ", "MSFT"}, Hooks{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "MSFT", results["MSFT"].Symbol)
}

func TestSingleReturn(t *testing.T) {
	assert.InDelta(t, 10.0, SingleReturn(decision.Buy, 100, 110), 1e-9)
	assert.InDelta(t, -10.0, SingleReturn(decision.Sell, 100, 110), 1e-9)
	assert.InDelta(t, 5.0, SingleReturn(decision.Sell, 100, 95), 1e-9)
	assert.Zero(t, SingleReturn(decision.Hold, 100, 120))
	assert.Zero(t, SingleReturn(decision.Buy, 0, 120))
	assert.False(t, SingleReturn(decision.Sell, 100, 100) < 0)
}

func TestDayReplayErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := error(&DayReplayError{Date: "2024-01-02", Err: base})
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "2024-01-02")
}
