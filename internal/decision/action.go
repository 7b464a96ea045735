package decision

import (
	"fmt"
	"strings"
)

// Action 是归一化后的交易动作。
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Normalize 将流水线的自由文本决策归一为 BUY/SELL/HOLD。
// 大小写不敏感；同时出现 BUY 与 SELL 时以 BUY 为准，其余情况一律 HOLD。
func Normalize(text string) Action {
	upper := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(upper, string(Buy)):
		return Buy
	case strings.Contains(upper, string(Sell)):
		return Sell
	default:
		return Hold
	}
}

// Parse 只接受规范名称（忽略大小写与空白）。
func Parse(raw string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(raw))); a {
	case Buy, Sell, Hold:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", raw)
	}
}

func (a Action) String() string { return string(a) }

// Active 表示该动作会产生持仓收益（非 HOLD）。
func (a Action) Active() bool {
	return a == Buy || a == Sell
}
