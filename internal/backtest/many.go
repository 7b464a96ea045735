package backtest

import (
	"context"
	"strings"

	"tradecrew/internal/logger"
)

// RunMany 依次回测多个标的；单个标的失败只记录日志。tmpl 中除 Symbol 外的字段对所有标的生效。
func (e *Engine) RunMany(ctx context.Context, tmpl Request, symbols []string, hooks Hooks) (map[string]Result, error) {
	logger.Infof("[backtest] 批量回测 %d 个标的 %s ~ %s", len(symbols), tmpl.StartDate, tmpl.EndDate)
	results := make(map[string]Result, len(symbols))
	order := make([]string, 0, len(symbols))
	for idx, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		logger.Infof("[backtest] [%d/%d] 开始回测 %s", idx+1, len(symbols), symbol)
		req := tmpl
		req.Symbol = symbol
		res, err := e.Run(ctx, req, hooks)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			logger.Warnf("[backtest] %s 回测失败: %v", symbol, err)
			continue
		}
		results[symbol] = res
		order = append(order, symbol)
	}
	logger.InfoBlock(SummaryTable(results, order))
	return results, nil
}
