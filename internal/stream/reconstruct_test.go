package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradecrew/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(events ...pipeline.TokenEvent) <-chan pipeline.TokenEvent {
	ch := make(chan pipeline.TokenEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

type line struct {
	kind    Kind
	stage   string
	content string
}

func flatten(events []Event) []line {
	out := make([]line, 0, len(events))
	for _, ev := range events {
		out = append(out, line{ev.Kind, ev.StageName(), ev.Text()})
	}
	return out
}

func TestReconstructStages(t *testing.T) {
	src := feed(
		pipeline.TokenEvent{Token: "orphan"},
		pipeline.TokenEvent{Node: "market_analyst", Token: "Hel"},
		pipeline.TokenEvent{Node: "market_analyst", Token: "lo"},
		pipeline.TokenEvent{Node: "portfolio_manager", Token: "I will "},
		pipeline.TokenEvent{Node: "portfolio_manager", Token: "sell"},
	)
	events := collect(t, Reconstruct(context.Background(), src, Options{}))
	assertSingleTerminal(t, events)
	assert.Equal(t, []line{
		{KindHeartbeat, "", StartContent},
		{KindStageStart, pipeline.StageMarketAnalyst, ""},
		{KindToken, pipeline.StageMarketAnalyst, "Hel"},
		{KindToken, pipeline.StageMarketAnalyst, "lo"},
		{KindStageEnd, pipeline.StageMarketAnalyst, "Hello"},
		{KindStageStart, pipeline.StagePortfolioManager, ""},
		{KindToken, pipeline.StagePortfolioManager, "I will "},
		{KindToken, pipeline.StagePortfolioManager, "sell"},
		{KindStageEnd, pipeline.StagePortfolioManager, "I will sell"},
		{KindComplete, "", "SELL"},
	}, flatten(events))
}

func TestReconstructReenteredNodeKeepsBuffer(t *testing.T) {
	src := feed(
		pipeline.TokenEvent{Node: "bull_researcher", Token: "a"},
		pipeline.TokenEvent{Node: "bear_researcher", Token: "b"},
		pipeline.TokenEvent{Node: "bull_researcher", Token: "c"},
	)
	got := flatten(collect(t, Reconstruct(context.Background(), src, Options{})))
	starts := 0
	for _, l := range got {
		if l.kind == KindStageStart {
			starts++
		}
	}
	assert.Equal(t, 2, starts)
	require.Len(t, got, 10)
	assert.Equal(t, line{KindStageEnd, pipeline.StageBullResearcher, "ac"}, got[8])
	assert.Equal(t, line{KindComplete, "", "HOLD"}, got[9])
}

func TestReconstructCustomTerminal(t *testing.T) {
	src := feed(pipeline.TokenEvent{Node: "trader", Token: "BUY"})
	events := collect(t, Reconstruct(context.Background(), src, Options{TerminalNode: "trader"}))
	assert.Equal(t, "BUY", events[len(events)-1].Text())
}

func TestReconstructSourceError(t *testing.T) {
	src := feed(
		pipeline.TokenEvent{Node: "news_analyst", Token: "x"},
		pipeline.TokenEvent{Err: errors.New("connection refused")},
		pipeline.TokenEvent{Node: "trader", Token: "never"},
	)
	events := collect(t, Reconstruct(context.Background(), src, Options{}))
	assertSingleTerminal(t, events)
	last := events[len(events)-1]
	assert.Equal(t, KindTimeoutError, last.Kind)
	assert.Equal(t, "Analysis error: connection refused", last.Text())
}

func TestReconstructIdleHeartbeat(t *testing.T) {
	src := make(chan pipeline.TokenEvent)
	go func() {
		time.Sleep(150 * time.Millisecond)
		close(src)
	}()
	events := collect(t, Reconstruct(context.Background(), src, Options{Heartbeat: 50 * time.Millisecond, Poll: 5 * time.Millisecond}))
	idle := 0
	for _, ev := range events {
		if ev.Kind == KindHeartbeat && ev.Content == nil {
			idle++
		}
	}
	assert.GreaterOrEqual(t, idle, 1)
	assert.Equal(t, KindComplete, events[len(events)-1].Kind)
}
