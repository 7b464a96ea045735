package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":8000"
	defaultPipelineBaseURL   = "http://localhost:8100"
	defaultPipelineModel     = "deepseek-v3"
	defaultMarket            = "US"
	defaultTerminalNode      = "portfolio_manager"
	defaultHeartbeatSeconds  = 15
	defaultPollMillis        = 1000
	defaultStreamBuffer      = 64
	defaultCallDelaySeconds  = 1.0
	defaultLookaheadDays     = 30
	defaultBacktestReflect   = true
	defaultBacktestSaveState = false
	defaultMaxConcurrent     = 1
	defaultCalendarPath      = "configs/calendar.yaml"
	defaultPricingDataRoot   = "data/candles"
)

var defaultAnalysts = []string{"market", "social", "news", "fundamentals"}

// defaultModelPresets 是内置的模型预设，配置文件中的同名条目会覆盖它们。
var defaultModelPresets = map[string]ModelPreset{
	"deepseek-v3":     {Provider: "dashscope", DeepThink: "deepseek-v3", QuickThink: "deepseek-v3"},
	"qwen3-max":       {Provider: "dashscope", DeepThink: "qwen3-max", QuickThink: "qwen3-max"},
	"gpt-4o":          {Provider: "openrouter", DeepThink: "openai/gpt-4o", QuickThink: "openai/gpt-4o-mini"},
	"claude-sonnet-4": {Provider: "openrouter", DeepThink: "anthropic/claude-sonnet-4", QuickThink: "anthropic/claude-sonnet-4"},
	"deepseek/deepseek-chat-v3-0324": {
		Provider:   "openrouter",
		DeepThink:  "deepseek/deepseek-chat-v3-0324",
		QuickThink: "deepseek/deepseek-chat-v3-0324",
	},
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Stream.applyDefaults(keys)
	c.Backtest.applyDefaults(keys, c.Pipeline.DefaultMarket)
	c.Calendar.applyDefaults(keys)
	c.Pricing.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("pipeline.base_url", &p.BaseURL, defaultPipelineBaseURL),
		stringFieldDefault("pipeline.default_model", &p.DefaultModel, defaultPipelineModel),
		stringFieldDefault("pipeline.default_market", &p.DefaultMarket, defaultMarket),
		stringFieldDefault("pipeline.terminal_node", &p.TerminalNode, defaultTerminalNode),
		fieldDefault{
			key:   "pipeline.default_analysts",
			need:  func() bool { return len(p.DefaultAnalysts) == 0 },
			apply: func() { p.DefaultAnalysts = append([]string(nil), defaultAnalysts...) },
		},
	)
	if p.TimeoutSeconds < 0 {
		p.TimeoutSeconds = 0
	}
	p.DefaultAnalysts = normalizeList(p.DefaultAnalysts)
	merged := make(map[string]ModelPreset, len(defaultModelPresets)+len(p.Models))
	for name, preset := range defaultModelPresets {
		merged[name] = preset
	}
	for name, preset := range p.Models {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.TrimSpace(preset.DeepThink) == "" {
			preset.DeepThink = name
		}
		if strings.TrimSpace(preset.QuickThink) == "" {
			preset.QuickThink = preset.DeepThink
		}
		merged[name] = preset
	}
	p.Models = merged
}

func (s *StreamConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "stream.heartbeat_seconds",
			need:  func() bool { return s.HeartbeatSeconds <= 0 },
			apply: func() { s.HeartbeatSeconds = defaultHeartbeatSeconds },
		},
		fieldDefault{
			key:   "stream.poll_millis",
			need:  func() bool { return s.PollMillis <= 0 },
			apply: func() { s.PollMillis = defaultPollMillis },
		},
		fieldDefault{
			key:   "stream.buffer",
			need:  func() bool { return s.Buffer <= 0 },
			apply: func() { s.Buffer = defaultStreamBuffer },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet, market string) {
	if b == nil {
		return
	}
	if strings.TrimSpace(market) == "" {
		market = defaultMarket
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "backtest.api_call_delay_seconds",
			need:  func() bool { return b.APICallDelaySeconds <= 0 },
			apply: func() { b.APICallDelaySeconds = defaultCallDelaySeconds },
		},
		fieldDefault{
			key:   "backtest.price_lookahead_days",
			need:  func() bool { return b.PriceLookaheadDays <= 0 },
			apply: func() { b.PriceLookaheadDays = defaultLookaheadDays },
		},
		fieldDefault{
			key:   "backtest.max_concurrent",
			need:  func() bool { return b.MaxConcurrent <= 0 },
			apply: func() { b.MaxConcurrent = defaultMaxConcurrent },
		},
		boolFieldDefault("backtest.reflection", &b.Reflection, defaultBacktestReflect),
		boolFieldDefault("backtest.save_states", &b.SaveStates, defaultBacktestSaveState),
		stringFieldDefault("backtest.default_market", &b.DefaultMarket, market),
	)
}

func (c *CalendarConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("calendar.path", &c.Path, defaultCalendarPath))
}

func (p *PricingConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("pricing.data_root", &p.DataRoot, defaultPricingDataRoot))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
