package pricing

import (
	"context"
	"sync"
	"time"

	"tradecrew/internal/calendar"

	"golang.org/x/sync/singleflight"
)

// Source 提供某标的在区间内的日收盘价。
type Source interface {
	Closes(ctx context.Context, market calendar.Market, symbol string, start, end time.Time) (Series, error)
}

type cacheKey struct {
	market calendar.Market
	symbol string
	start  string
	end    string
}

func (k cacheKey) String() string {
	return string(k.market) + "|" + k.symbol + "|" + k.start + "|" + k.end
}

// Cache 以 (市场, 标的, 起, 止) 为键缓存价格序列，生命周期与持有者一致。
type Cache struct {
	src   Source
	group singleflight.Group

	mu     sync.RWMutex
	series map[cacheKey]Series
}

func NewCache(src Source) *Cache {
	return &Cache{src: src, series: make(map[cacheKey]Series)}
}

// Closes 命中缓存直接返回；并发的相同请求只回源一次。失败结果不缓存。
func (c *Cache) Closes(ctx context.Context, market calendar.Market, symbol string, start, end time.Time) (Series, error) {
	key := cacheKey{
		market: market,
		symbol: symbol,
		start:  calendar.FormatDate(start),
		end:    calendar.FormatDate(end),
	}
	c.mu.RLock()
	s, ok := c.series[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		cached, ok := c.series[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		s, err := c.src.Closes(ctx, market, symbol, start, end)
		if err != nil {
			return Series{}, err
		}
		c.mu.Lock()
		c.series[key] = s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return Series{}, err
	}
	return v.(Series), nil
}

// Len 返回缓存条目数。
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}
