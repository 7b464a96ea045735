package backtest

import (
	"fmt"
	"strings"
)

const rule = "========================================"

// Report 渲染多行文本汇总，供日志与命令行输出。
func (m Metrics) Report() string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("        Backtest Evaluation Report\n")
	b.WriteString(rule + "\n")
	b.WriteString("Trade Statistics:\n")
	fmt.Fprintf(&b, "  Total Trading Days:    %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "  Active Trades:         %d (BUY/SELL)\n", m.ActiveTrades)
	fmt.Fprintf(&b, "  Winning Trades:        %d\n", m.WinningTrades)
	fmt.Fprintf(&b, "  Losing Trades:         %d\n", m.LosingTrades)
	fmt.Fprintf(&b, "  Win Rate:              %.2f%%\n\n", m.WinRate)
	b.WriteString("Return Metrics:\n")
	fmt.Fprintf(&b, "  Cumulative Return:     %.2f%%\n", m.CumulativeReturn)
	fmt.Fprintf(&b, "  Average Return:        %.2f%%\n", m.AvgReturn)
	fmt.Fprintf(&b, "  Maximum Drawdown:      %.2f%%\n\n", m.MaxDrawdown)
	b.WriteString("Risk Metrics:\n")
	fmt.Fprintf(&b, "  Volatility:            %.2f%%\n", m.Volatility)
	fmt.Fprintf(&b, "  Sharpe Ratio:          %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "  Sortino Ratio:         %.2f\n", m.SortinoRatio)
	fmt.Fprintf(&b, "  Calmar Ratio:          %.2f\n", m.CalmarRatio)
	fmt.Fprintf(&b, "  Profit Factor:         %.2f\n\n", m.ProfitFactor)
	b.WriteString("Streak Statistics:\n")
	fmt.Fprintf(&b, "  Max Consecutive Wins:  %d\n", m.MaxConsecutiveWins)
	fmt.Fprintf(&b, "  Max Consecutive Losses:%d\n", m.MaxConsecutiveLosses)
	b.WriteString(rule)
	return b.String()
}

// SummaryTable 渲染多标的回测对比表，order 决定行顺序；没有结果的标的跳过。
func SummaryTable(results map[string]Result, order []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %12s %10s %10s\n", "Symbol", "Cum. Return", "Win Rate", "Max DD")
	b.WriteString(strings.Repeat("-", 44) + "\n")
	var totalReturn, totalWin float64
	n := 0
	for _, symbol := range order {
		res, ok := results[symbol]
		if !ok {
			continue
		}
		m := res.Metrics
		fmt.Fprintf(&b, "%-10s %+11.2f%% %9.1f%% %9.2f%%\n", symbol, m.CumulativeReturn, m.WinRate, m.MaxDrawdown)
		totalReturn += m.CumulativeReturn
		totalWin += m.WinRate
		n++
	}
	if n > 0 {
		b.WriteString(strings.Repeat("-", 44) + "\n")
		fmt.Fprintf(&b, "%-10s %+11.2f%% %9.1f%%\n", "Average", totalReturn/float64(n), totalWin/float64(n))
	}
	return b.String()
}
