package stream

import (
	"strconv"
	"strings"

	"tradecrew/internal/pipeline"
)

// Update 是某个阶段新增的一段内容。
type Update struct {
	Stage   string
	Content string
}

// Processed 记录一条流内已发送过的内容键，随流创建、随流销毁。
type Processed map[string]struct{}

func NewProcessed() Processed { return make(Processed) }

func (p Processed) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Processed) mark(key string) { p[key] = struct{}{} }

type reportField struct {
	key   string
	stage string
	get   func(*pipeline.Snapshot) string
}

var reportFields = []reportField{
	{"market_report", pipeline.StageMarketAnalyst, func(s *pipeline.Snapshot) string { return s.MarketReport }},
	{"sentiment_report", pipeline.StageSocialAnalyst, func(s *pipeline.Snapshot) string { return s.SentimentReport }},
	{"news_report", pipeline.StageNewsAnalyst, func(s *pipeline.Snapshot) string { return s.NewsReport }},
	{"fundamentals_report", pipeline.StageFundamentalsAnalyst, func(s *pipeline.Snapshot) string { return s.FundamentalsReport }},
	{"investment_plan", pipeline.StageResearchManager, func(s *pipeline.Snapshot) string { return s.InvestmentPlan }},
	{"trader_investment_plan", pipeline.StageTrader, func(s *pipeline.Snapshot) string { return s.TraderInvestmentPlan }},
	{"final_trade_decision", pipeline.StagePortfolioManager, func(s *pipeline.Snapshot) string { return s.FinalTradeDecision }},
}

type debateRole struct {
	key    string
	stage  string
	marker string
	get    func(*pipeline.RiskDebate) string
}

var riskRoles = []debateRole{
	{"risky_history", pipeline.StageRiskyAnalyst, "Risky", func(d *pipeline.RiskDebate) string { return d.RiskyHistory }},
	{"safe_history", pipeline.StageSafeAnalyst, "Safe", func(d *pipeline.RiskDebate) string { return d.SafeHistory }},
	{"neutral_history", pipeline.StageNeutralAnalyst, "Neutral", func(d *pipeline.RiskDebate) string { return d.NeutralHistory }},
}

// Extract 对比累积快照与已处理集合，按固定顺序返回尚未发送过的内容，并登记到 processed。
// 顺序：简单报告 → 多头 → 空头 → 研究裁决 → 激进/保守/中性 → 风控裁决。
func Extract(snap pipeline.Snapshot, processed Processed) []Update {
	var out []Update
	emit := func(key, stage, content string) {
		processed.mark(key)
		out = append(out, Update{Stage: stage, Content: content})
	}

	for _, f := range reportFields {
		content := f.get(&snap)
		if strings.TrimSpace(content) == "" || processed.has(f.key) {
			continue
		}
		emit(f.key, f.stage, content)
	}

	if d := snap.InvestmentDebate; d != nil {
		if key, latest, ok := latestFrom("bull", d.BullHistory, "Bull", processed); ok {
			emit(key, pipeline.StageBullResearcher, latest)
		}
		if key, latest, ok := latestFrom("bear", d.BearHistory, "Bear", processed); ok {
			emit(key, pipeline.StageBearResearcher, latest)
		}
		if d.JudgeDecision != "" && !processed.has("judge_decision") {
			emit("judge_decision", pipeline.StageResearchManager, d.JudgeDecision)
		}
	}

	if d := snap.RiskDebate; d != nil {
		for _, role := range riskRoles {
			if key, latest, ok := latestFrom(role.key, role.get(d), role.marker, processed); ok {
				emit(key, role.stage, latest)
			}
		}
		if d.JudgeDecision != "" && !processed.has("risk_judge_decision") {
			emit("risk_judge_decision", pipeline.StageRiskManager, d.JudgeDecision)
		}
	}
	return out
}

// latestFrom 以 (角色, 历史长度) 为键；历史只追加，长度变化即代表新发言。
func latestFrom(prefix, history, marker string, processed Processed) (string, string, bool) {
	if history == "" {
		return "", "", false
	}
	key := prefix + "_" + strconv.Itoa(len(history))
	if processed.has(key) {
		return "", "", false
	}
	latest := LatestStatement(history, marker)
	if latest == "" {
		return "", "", false
	}
	return key, latest, true
}

// LatestStatement 取 marker 最后一次出现之后的发言，去掉 " Analyst:"/" Researcher:" 前缀。
func LatestStatement(history, marker string) string {
	idx := strings.LastIndex(history, marker)
	if idx < 0 {
		return ""
	}
	last := history[idx+len(marker):]
	if strings.HasPrefix(last, " Analyst:") || strings.HasPrefix(last, " Researcher:") {
		last = last[strings.Index(last, ":")+1:]
	}
	return strings.TrimSpace(last)
}
