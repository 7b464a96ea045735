package pipeline

import "strings"

// 阶段展示名，与前端约定一致。
const (
	StageMarketAnalyst       = "Market Analyst"
	StageSocialAnalyst       = "Social Analyst"
	StageNewsAnalyst         = "News Analyst"
	StageFundamentalsAnalyst = "Fundamentals Analyst"
	StageBullResearcher      = "Bull Researcher"
	StageBearResearcher      = "Bear Researcher"
	StageResearchManager     = "Research Manager"
	StageTrader              = "Trader"
	StageRiskyAnalyst        = "Risky Analyst"
	StageSafeAnalyst         = "Safe Analyst"
	StageNeutralAnalyst      = "Neutral Analyst"
	StageRiskManager         = "Risk Manager"
	StagePortfolioManager    = "Portfolio Manager"
)

// TerminalNode 是产出最终决策的节点名。
const TerminalNode = "portfolio_manager"

var nodeStages = map[string]string{
	"market_analyst":       StageMarketAnalyst,
	"social_analyst":       StageSocialAnalyst,
	"news_analyst":         StageNewsAnalyst,
	"fundamentals_analyst": StageFundamentalsAnalyst,
	"bull_researcher":      StageBullResearcher,
	"bear_researcher":      StageBearResearcher,
	"research_manager":     StageResearchManager,
	"invest_judge":         StageResearchManager,
	"trader":               StageTrader,
	"risky_debator":        StageRiskyAnalyst,
	"safe_debator":         StageSafeAnalyst,
	"neutral_debator":      StageNeutralAnalyst,
	"risk_manager":         StageRiskManager,
	"risk_judge":           StageRiskManager,
	"portfolio_manager":    StagePortfolioManager,
}

// StageForNode 将图节点名映射为阶段展示名；未知节点原样返回。
func StageForNode(node string) string {
	if stage, ok := nodeStages[strings.ToLower(strings.TrimSpace(node))]; ok {
		return stage
	}
	return node
}
