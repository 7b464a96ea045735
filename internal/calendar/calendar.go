package calendar

import "time"

const (
	DateLayout = "2006-01-02"
	maxScan    = 3660
)

// Calendar 是按市场参数化的交易日历。所有日期均为 UTC 零点表示的自然日。
type Calendar interface {
	Market() Market
	IsSession(day time.Time) bool
	// Sessions 返回 [start, end] 闭区间内的交易日，升序。
	Sessions(start, end time.Time) []time.Time
	// Next 返回严格晚于 day 的第一个交易日。
	Next(day time.Time) time.Time
	// Previous 返回严格早于 day 的最后一个交易日。
	Previous(day time.Time) time.Time
}

// Date 把任意时间截断为同一自然日的 UTC 零点。
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// sessionCalendar 以“工作日且非节假日”定义交易日；无节假日数据时退化为纯工作日规则。
type sessionCalendar struct {
	market   Market
	holidays map[string]struct{}
}

// Weekdays 返回只按周一至周五判断的日历。
func Weekdays(market Market) Calendar {
	return &sessionCalendar{market: market}
}

// New 用节假日列表构建日历。
func New(market Market, holidays []time.Time) Calendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[FormatDate(Date(h))] = struct{}{}
	}
	return &sessionCalendar{market: market, holidays: set}
}

func (c *sessionCalendar) Market() Market { return c.market }

func (c *sessionCalendar) IsSession(day time.Time) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if len(c.holidays) == 0 {
		return true
	}
	_, closed := c.holidays[FormatDate(day)]
	return !closed
}

func (c *sessionCalendar) Sessions(start, end time.Time) []time.Time {
	start, end = Date(start), Date(end)
	if start.After(end) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsSession(d) {
			out = append(out, d)
		}
	}
	return out
}

func (c *sessionCalendar) Next(day time.Time) time.Time {
	return c.step(Date(day), 1)
}

func (c *sessionCalendar) Previous(day time.Time) time.Time {
	return c.step(Date(day), -1)
}

func (c *sessionCalendar) step(day time.Time, dir int) time.Time {
	d := day.AddDate(0, 0, dir)
	for i := 0; i < maxScan && !c.IsSession(d); i++ {
		d = d.AddDate(0, 0, dir)
	}
	return d
}
