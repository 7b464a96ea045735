package analysishttp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradecrew/internal/backtest"
	"tradecrew/internal/calendar"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/pricing"
	"tradecrew/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	snapshots []pipeline.Snapshot
	final     pipeline.Snapshot
	runErr    error
	tokens    []pipeline.TokenEvent
	tokensErr error
	got       chan pipeline.Request
}

func (f *fakePipeline) Run(ctx context.Context, req pipeline.Request, onSnapshot func(pipeline.Snapshot)) (pipeline.Snapshot, error) {
	f.record(req)
	for _, s := range f.snapshots {
		onSnapshot(s)
	}
	return f.final, f.runErr
}

func (f *fakePipeline) StreamTokens(ctx context.Context, req pipeline.Request) (<-chan pipeline.TokenEvent, error) {
	f.record(req)
	if f.tokensErr != nil {
		return nil, f.tokensErr
	}
	ch := make(chan pipeline.TokenEvent, len(f.tokens))
	for _, ev := range f.tokens {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakePipeline) record(req pipeline.Request) {
	if f.got != nil {
		f.got <- req
	}
}

type emptySource struct{}

func (emptySource) Closes(context.Context, calendar.Market, string, time.Time, time.Time) (pricing.Series, error) {
	return pricing.Series{}, nil
}

func newTestServer(t *testing.T, p *fakePipeline, factoryErr error) *Server {
	t.Helper()
	factory := func() (pipeline.Pipeline, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return p, nil
	}
	engine, err := backtest.NewEngine(backtest.EngineConfig{Pipelines: factory, Prices: emptySource{}})
	require.NoError(t, err)
	svc, err := backtest.NewService(backtest.ServiceConfig{Engine: engine})
	require.NoError(t, err)
	srv, err := NewServer(ServerConfig{
		Pipelines: factory,
		Backtests: svc,
		Stream:    stream.Options{Poll: 10 * time.Millisecond},
		Models: func(name string) (string, string) {
			if name == "" {
				return "deepseek-v3", "dashscope"
			}
			return name, "openrouter"
		},
	})
	require.NoError(t, err)
	return srv
}

func post(srv *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func readLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), sc.Text())
		out = append(out, line)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, nil)
	rec := get(srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"analysis"}`, rec.Body.String())
}

func TestAnalyzeStreamsSnapshotUpdates(t *testing.T) {
	p := &fakePipeline{
		snapshots: []pipeline.Snapshot{
			{MarketReport: "uptrend"},
			{MarketReport: "uptrend", NewsReport: "earnings beat"},
		},
		final: pipeline.Snapshot{MarketReport: "uptrend", NewsReport: "earnings beat", FinalTradeDecision: "we BUY"},
		got:   make(chan pipeline.Request, 1),
	}
	srv := newTestServer(t, p, nil)
	rec := post(srv, "/analyze", `{"ticker":"aapl","date":"2024-01-08"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stream.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	lines := readLines(t, rec.Body.String())
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, map[string]any{"agent": stream.AgentHeartbeat, "content": stream.StartContent}, lines[0])

	var stages []string
	for _, l := range lines[1 : len(lines)-1] {
		if l["agent"] != stream.AgentHeartbeat {
			stages = append(stages, l["agent"].(string))
		}
	}
	assert.Equal(t, []string{pipeline.StageMarketAnalyst, pipeline.StageNewsAnalyst, pipeline.StagePortfolioManager}, stages)
	assert.Equal(t, map[string]any{"agent": stream.AgentFinal, "content": "BUY"}, lines[len(lines)-1])

	req := <-p.got
	assert.Equal(t, "AAPL", req.Ticker)
	assert.Equal(t, "US", req.Market)
	assert.Equal(t, pipeline.DefaultAnalysts, req.Analysts)
	assert.Equal(t, "deepseek-v3", req.Model)
	assert.Equal(t, "dashscope", req.Provider)
}

func TestAnalyzeClassifiesFailures(t *testing.T) {
	p := &fakePipeline{runErr: errors.New("Error code: 429 insufficient_quota")}
	srv := newTestServer(t, p, nil)
	lines := readLines(t, post(srv, "/analyze", `{"ticker":"AAPL","date":"2024-01-08","model":"gpt-4o"}`).Body.String())
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Equal(t, stream.AgentError, last["agent"])
	assert.Equal(t, "Analysis error: Error code: 429 insufficient_quota", last["content"])
}

func TestAnalyzeFactoryFailure(t *testing.T) {
	srv := newTestServer(t, nil, errors.New("connection refused"))
	lines := readLines(t, post(srv, "/analyze/stream", `{"ticker":"AAPL","date":"2024-01-08"}`).Body.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "heartbeat", lines[0]["type"])
	assert.Equal(t, "timeout_error", lines[1]["type"])
	assert.Nil(t, lines[1]["agent"])
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, nil)
	for _, body := range []string{
		`{"date":"2024-01-08"}`,
		`{"ticker":"AAPL","date":"08/01/2024"}`,
		`{"ticker":"AAPL","date":"2024-01-08","market":"LSE"}`,
		`not json`,
	} {
		rec := post(srv, "/analyze", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "error")
	}
}

func TestAnalyzeStreamReconstructsTokens(t *testing.T) {
	p := &fakePipeline{tokens: []pipeline.TokenEvent{
		{Node: "market_analyst", Token: "Up"},
		{Node: "market_analyst", Token: "trend"},
		{Node: "portfolio_manager", Token: "SELL now"},
	}}
	srv := newTestServer(t, p, nil)
	rec := post(srv, "/analyze/stream", `{"ticker":"AAPL","date":"2024-01-08","market":"hk"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := readLines(t, rec.Body.String())
	var kinds []string
	for _, l := range lines {
		kinds = append(kinds, l["type"].(string))
	}
	assert.Equal(t, []string{"heartbeat", "node_start", "token", "token", "node_end", "node_start", "token", "node_end", "complete"}, kinds)
	assert.Equal(t, pipeline.StageMarketAnalyst, lines[4]["agent"])
	assert.Equal(t, "Uptrend", lines[4]["content"])
	assert.Equal(t, "SELL", lines[8]["content"])
	assert.Nil(t, lines[8]["agent"])
}

func TestBacktestRuns(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, nil)

	rec := post(srv, "/api/backtest/runs", `{"symbol":"aapl","start_date":"2024-01-08","end_date":"2024-01-12"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created struct {
		Run backtest.Run `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "AAPL", created.Run.Request.Symbol)
	assert.Equal(t, "deepseek-v3", created.Run.Request.Model)
	assert.Equal(t, "dashscope", created.Run.Request.Provider)

	require.Eventually(t, func() bool {
		rec := get(srv, "/api/backtest/runs/"+created.Run.ID)
		var detail struct {
			Run backtest.Run `json:"run"`
		}
		if json.Unmarshal(rec.Body.Bytes(), &detail) != nil {
			return false
		}
		return detail.Run.Status == backtest.RunStatusDone
	}, 5*time.Second, 10*time.Millisecond)

	list := get(srv, "/api/backtest/runs")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), created.Run.ID)

	assert.Equal(t, http.StatusNotFound, get(srv, "/api/backtest/runs/missing").Code)
	assert.Equal(t, http.StatusBadRequest, post(srv, "/api/backtest/runs", `{"symbol":"AAPL","start_date":"2024-01-12","end_date":"2024-01-08"}`).Code)
}
