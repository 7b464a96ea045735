package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Market 标识一个交易市场。
type Market string

const (
	MarketAShare Market = "A-share"
	MarketUS     Market = "US"
	MarketHK     Market = "HK"
)

// MarketInfo 是市场的静态属性。
type MarketInfo struct {
	Name     string
	Exchange string
	Currency string
	Timezone string
}

var marketInfos = map[Market]MarketInfo{
	MarketAShare: {Name: "China A-Share", Exchange: "XSHG", Currency: "CNY", Timezone: "Asia/Shanghai"},
	MarketUS:     {Name: "US Stock", Exchange: "XNYS", Currency: "USD", Timezone: "America/New_York"},
	MarketHK:     {Name: "Hong Kong Stock", Exchange: "XHKG", Currency: "HKD", Timezone: "Asia/Hong_Kong"},
}

var marketAliases = map[string]Market{
	"a-share": MarketAShare,
	"ashare":  MarketAShare,
	"cn":      MarketAShare,
	"xshg":    MarketAShare,
	"us":      MarketUS,
	"xnys":    MarketUS,
	"hk":      MarketHK,
	"xhkg":    MarketHK,
}

// ParseMarket 解析市场名称（大小写不敏感，兼容交易所代码）。
func ParseMarket(raw string) (Market, error) {
	if m, ok := marketAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unsupported market %q", raw)
}

// Markets 返回所有支持的市场。
func Markets() []Market {
	return []Market{MarketAShare, MarketUS, MarketHK}
}

func (m Market) Info() MarketInfo {
	return marketInfos[m]
}

// Location 返回市场所在时区，未知市场按 UTC。
func (m Market) Location() *time.Location {
	info, ok := marketInfos[m]
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(info.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
