package calendar

import (
	"strings"
	"sync"

	"tradecrew/internal/logger"
)

// Cache 按市场缓存日历实例，由执行日历查询的组件持有。
// 绑定注册表时，注册表每次重载都会清空缓存。
type Cache struct {
	registry *Registry

	mu        sync.Mutex
	calendars map[Market]Calendar
}

// NewCache 创建缓存；registry 为 nil 时所有市场使用工作日规则。
func NewCache(registry *Registry) *Cache {
	c := &Cache{registry: registry, calendars: make(map[Market]Calendar)}
	if registry != nil {
		registry.Subscribe(func(Snapshot) { c.Invalidate() })
	}
	return c
}

// For 返回市场日历，必要时构建。
func (c *Cache) For(market Market) Calendar {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cal, ok := c.calendars[market]; ok {
		return cal
	}
	cal := c.build(market)
	c.calendars[market] = cal
	return cal
}

// Invalidate 清空已构建的日历。
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.calendars = make(map[Market]Calendar)
	c.mu.Unlock()
}

// Constituents 返回指数成分列表。
func (c *Cache) Constituents(market Market, index string) ([]string, bool) {
	if c.registry == nil {
		return nil, false
	}
	data, ok := c.registry.Market(market)
	if !ok {
		return nil, false
	}
	symbols, ok := data.Indices[strings.ToLower(strings.TrimSpace(index))]
	return symbols, ok && len(symbols) > 0
}

func (c *Cache) build(market Market) Calendar {
	if c.registry != nil {
		if data, ok := c.registry.Market(market); ok && len(data.Holidays) > 0 {
			return New(market, data.Holidays)
		}
	}
	logger.Warnf("[calendar] %s 无节假日数据，按工作日推算交易日", market)
	return Weekdays(market)
}
