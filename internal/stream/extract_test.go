package stream

import (
	"testing"

	"tradecrew/internal/pipeline"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestExtractEmitsReportsOnce(t *testing.T) {
	processed := NewProcessed()
	snap := pipeline.Snapshot{MarketReport: "trend up", NewsReport: "   "}

	got := Extract(snap, processed)
	assert.Equal(t, []Update{{Stage: pipeline.StageMarketAnalyst, Content: "trend up"}}, got)

	assert.Empty(t, Extract(snap, processed))

	snap.NewsReport = "earnings beat"
	got = Extract(snap, processed)
	assert.Equal(t, []Update{{Stage: pipeline.StageNewsAnalyst, Content: "earnings beat"}}, got)
}

func TestExtractDebateEmitsLatestStatement(t *testing.T) {
	processed := NewProcessed()
	snap := pipeline.Snapshot{InvestmentDebate: &pipeline.InvestDebate{
		BullHistory: "Bull Analyst: demand is strong",
	}}
	assert.Equal(t, []Update{{Stage: pipeline.StageBullResearcher, Content: "demand is strong"}}, Extract(snap, processed))

	snap.InvestmentDebate.BullHistory += "\nBull Analyst: margins expand too"
	assert.Equal(t, []Update{{Stage: pipeline.StageBullResearcher, Content: "margins expand too"}}, Extract(snap, processed))

	assert.Empty(t, Extract(snap, processed))
}

func TestExtractEmptyStatementIsNotMarked(t *testing.T) {
	processed := NewProcessed()
	snap := pipeline.Snapshot{InvestmentDebate: &pipeline.InvestDebate{BearHistory: "no speaker here"}}
	assert.Empty(t, Extract(snap, processed))
	assert.Empty(t, processed)
}

func TestExtractOrder(t *testing.T) {
	snap := pipeline.Snapshot{
		MarketReport:         "m",
		SentimentReport:      "s",
		NewsReport:           "n",
		FundamentalsReport:   "f",
		InvestmentPlan:       "plan",
		TraderInvestmentPlan: "trade",
		FinalTradeDecision:   "BUY",
		InvestmentDebate: &pipeline.InvestDebate{
			BullHistory:   "Bull Analyst: up",
			BearHistory:   "Bear Analyst: down",
			JudgeDecision: "go long",
		},
		RiskDebate: &pipeline.RiskDebate{
			RiskyHistory:   "Risky Analyst: all in",
			SafeHistory:    "Safe Analyst: small size",
			NeutralHistory: "Neutral Analyst: half",
			JudgeDecision:  "approve",
		},
	}
	want := []Update{
		{pipeline.StageMarketAnalyst, "m"},
		{pipeline.StageSocialAnalyst, "s"},
		{pipeline.StageNewsAnalyst, "n"},
		{pipeline.StageFundamentalsAnalyst, "f"},
		{pipeline.StageResearchManager, "plan"},
		{pipeline.StageTrader, "trade"},
		{pipeline.StagePortfolioManager, "BUY"},
		{pipeline.StageBullResearcher, "up"},
		{pipeline.StageBearResearcher, "down"},
		{pipeline.StageResearchManager, "go long"},
		{pipeline.StageRiskyAnalyst, "all in"},
		{pipeline.StageSafeAnalyst, "small size"},
		{pipeline.StageNeutralAnalyst, "half"},
		{pipeline.StageRiskManager, "approve"},
	}
	if diff := cmp.Diff(want, Extract(snap, NewProcessed())); diff != "" {
		t.Fatalf("unexpected updates (-want +got):\n%s", diff)
	}
}

func TestExtractIsPerStream(t *testing.T) {
	snap := pipeline.Snapshot{MarketReport: "m"}
	assert.Len(t, Extract(snap, NewProcessed()), 1)
	assert.Len(t, Extract(snap, NewProcessed()), 1)
}

func TestLatestStatement(t *testing.T) {
	cases := []struct {
		history, marker, want string
	}{
		{"Bull Analyst: hello", "Bull", "hello"},
		{"Bear Researcher:  cautious  ", "Bear", "cautious"},
		{"Risky Analyst: a\nRisky Analyst: b", "Risky", "b"},
		{"nothing to see", "Safe", ""},
		{"", "Neutral", ""},
		{"Neutral: raw", "Neutral", ": raw"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LatestStatement(tc.history, tc.marker), tc.history)
	}
}
