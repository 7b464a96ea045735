package pipeline

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Snapshot 是流水线在某一时刻的累积状态。空字符串视为字段尚未出现。
type Snapshot struct {
	MarketReport         string        `json:"market_report,omitempty"`
	SentimentReport      string        `json:"sentiment_report,omitempty"`
	NewsReport           string        `json:"news_report,omitempty"`
	FundamentalsReport   string        `json:"fundamentals_report,omitempty"`
	InvestmentPlan       string        `json:"investment_plan,omitempty"`
	TraderInvestmentPlan string        `json:"trader_investment_plan,omitempty"`
	FinalTradeDecision   string        `json:"final_trade_decision,omitempty"`
	InvestmentDebate     *InvestDebate `json:"investment_debate_state,omitempty"`
	RiskDebate           *RiskDebate   `json:"risk_debate_state,omitempty"`
}

// InvestDebate 多空研究员辩论的累积记录。
type InvestDebate struct {
	BullHistory     string `json:"bull_history,omitempty"`
	BearHistory     string `json:"bear_history,omitempty"`
	History         string `json:"history,omitempty"`
	CurrentResponse string `json:"current_response,omitempty"`
	JudgeDecision   string `json:"judge_decision,omitempty"`
}

// RiskDebate 风控三方辩论的累积记录。
type RiskDebate struct {
	RiskyHistory   string `json:"risky_history,omitempty"`
	SafeHistory    string `json:"safe_history,omitempty"`
	NeutralHistory string `json:"neutral_history,omitempty"`
	History        string `json:"history,omitempty"`
	JudgeDecision  string `json:"judge_decision,omitempty"`
}

// DecodeSnapshot 从 JSON 文本解析快照；未知字段忽略。
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	if !gjson.ValidBytes(raw) {
		return Snapshot{}, fmt.Errorf("invalid snapshot json")
	}
	return snapshotFromResult(gjson.ParseBytes(raw)), nil
}

func snapshotFromResult(r gjson.Result) Snapshot {
	snap := Snapshot{
		MarketReport:         r.Get("market_report").String(),
		SentimentReport:      r.Get("sentiment_report").String(),
		NewsReport:           r.Get("news_report").String(),
		FundamentalsReport:   r.Get("fundamentals_report").String(),
		InvestmentPlan:       r.Get("investment_plan").String(),
		TraderInvestmentPlan: r.Get("trader_investment_plan").String(),
		FinalTradeDecision:   r.Get("final_trade_decision").String(),
	}
	if d := r.Get("investment_debate_state"); d.IsObject() {
		snap.InvestmentDebate = &InvestDebate{
			BullHistory:     d.Get("bull_history").String(),
			BearHistory:     d.Get("bear_history").String(),
			History:         d.Get("history").String(),
			CurrentResponse: d.Get("current_response").String(),
			JudgeDecision:   d.Get("judge_decision").String(),
		}
	}
	if d := r.Get("risk_debate_state"); d.IsObject() {
		snap.RiskDebate = &RiskDebate{
			RiskyHistory:   d.Get("risky_history").String(),
			SafeHistory:    d.Get("safe_history").String(),
			NeutralHistory: d.Get("neutral_history").String(),
			History:        d.Get("history").String(),
			JudgeDecision:  d.Get("judge_decision").String(),
		}
	}
	return snap
}
