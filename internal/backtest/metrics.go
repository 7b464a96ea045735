package backtest

import (
	"math"

	"tradecrew/internal/decision"
)

// Unbounded 是比率无上界（无亏损/无回撤）时的报告值。
const Unbounded = 999.99

const tradingDaysPerYear = 252

// Metrics 汇总一组交易记录的表现。
type Metrics struct {
	WinRate              float64 `json:"win_rate"`
	CumulativeReturn     float64 `json:"cumulative_return"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`
	TotalTrades          int     `json:"total_trades"`
	ActiveTrades         int     `json:"active_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	AvgReturn            float64 `json:"avg_return"`
	Volatility           float64 `json:"volatility"`
	ProfitFactor         float64 `json:"profit_factor"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// Calculate 计算绩效指标。HOLD 计入总数与累计收益，其余统计只看 BUY/SELL。
func Calculate(trades []TradeRecord) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}
	returns := make([]float64, 0, len(trades))
	var active []float64
	for _, t := range trades {
		returns = append(returns, t.ReturnPct)
		if t.Decision != decision.Hold {
			active = append(active, t.ReturnPct)
		}
	}
	m := Metrics{TotalTrades: len(trades), ActiveTrades: len(active)}
	if len(active) == 0 {
		return m
	}

	var profit, loss float64
	for _, r := range active {
		switch {
		case r > 0:
			m.WinningTrades++
			profit += r
		case r < 0:
			m.LosingTrades++
			loss += -r
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(len(active)) * 100
	m.CumulativeReturn = sum(returns)
	m.MaxDrawdown = MaxDrawdown(returns)
	m.AvgReturn = mean(active)
	if len(active) > 1 {
		m.Volatility = popStdDev(active)
	}
	if m.Volatility > 0 {
		m.SharpeRatio = m.AvgReturn / m.Volatility * math.Sqrt(tradingDaysPerYear)
	}
	switch {
	case loss > 0:
		m.ProfitFactor = profit / loss
	case profit > 0:
		m.ProfitFactor = Unbounded
	}
	m.MaxConsecutiveWins, m.MaxConsecutiveLosses = ConsecutiveStreaks(active)
	m.SortinoRatio = bounded(SortinoRatio(active, 0))
	m.CalmarRatio = bounded(CalmarRatio(m.CumulativeReturn, m.MaxDrawdown))
	return m
}

// MaxDrawdown 以 100 为初始净值逐笔复利，返回峰值到谷值的最大回撤（%）。
func MaxDrawdown(returns []float64) float64 {
	nav, peak, maxDD := 100.0, 100.0, 0.0
	for _, r := range returns {
		nav *= 1 + r/100
		if nav > peak {
			peak = nav
		}
		if peak > 0 {
			maxDD = math.Max(maxDD, (peak-nav)/peak*100)
		}
	}
	return maxDD
}

// ConsecutiveStreaks 返回最长连胜与连亏；收益为 0 的记录不打断也不延长连续计数。
func ConsecutiveStreaks(returns []float64) (wins, losses int) {
	var curWins, curLosses int
	for _, r := range returns {
		switch {
		case r > 0:
			curWins++
			curLosses = 0
			wins = max(wins, curWins)
		case r < 0:
			curLosses++
			curWins = 0
			losses = max(losses, curLosses)
		}
	}
	return wins, losses
}

// SortinoRatio 只以下行波动作分母；没有下行样本且均值为正时返回 +Inf。
func SortinoRatio(returns []float64, target float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - target
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}
	avg := mean(excess)
	if len(downside) == 0 {
		if avg > 0 {
			return math.Inf(1)
		}
		return 0
	}
	sd := popStdDev(downside)
	if sd == 0 {
		return 0
	}
	return avg / sd * math.Sqrt(tradingDaysPerYear)
}

// CalmarRatio 为累计收益除以最大回撤；回撤为 0 且收益为正时返回 +Inf。
func CalmarRatio(cumulativeReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		if cumulativeReturn > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return cumulativeReturn / maxDrawdown
}

func bounded(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return Unbounded
	case math.IsNaN(v), math.IsInf(v, -1):
		return 0
	default:
		return v
	}
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

// popStdDev 为总体标准差（除以 N）。
func popStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mu := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - mu) * (x - mu)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
