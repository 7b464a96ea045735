package config

import "strings"

// Config 是 tradecrew 的主配置载体。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Stream   StreamConfig   `yaml:"stream"`
	Backtest BacktestConfig `yaml:"backtest"`
	Calendar CalendarConfig `yaml:"calendar"`
	Pricing  PricingConfig  `yaml:"pricing"`
}

type AppConfig struct {
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	HTTPAddr       string `yaml:"http_addr"`
	LogPath        string `yaml:"log_path"`
	TranscriptPath string `yaml:"transcript_path"`
}

// PipelineConfig 描述外部决策流水线服务。
type PipelineConfig struct {
	BaseURL         string                 `yaml:"base_url"`
	TimeoutSeconds  int                    `yaml:"timeout_seconds"`
	DefaultModel    string                 `yaml:"default_model"`
	DefaultMarket   string                 `yaml:"default_market"`
	DefaultAnalysts []string               `yaml:"default_analysts"`
	TerminalNode    string                 `yaml:"terminal_node"`
	Models          map[string]ModelPreset `yaml:"models"`
}

// ModelPreset 把模型名映射到提供方与深/浅思考模型。
type ModelPreset struct {
	Provider   string `yaml:"provider"`
	DeepThink  string `yaml:"deep_think_model"`
	QuickThink string `yaml:"quick_think_model"`
}

type StreamConfig struct {
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`
	PollMillis       int `yaml:"poll_millis"`
	Buffer           int `yaml:"buffer"`
}

type BacktestConfig struct {
	APICallDelaySeconds float64 `yaml:"api_call_delay_seconds"`
	PriceLookaheadDays  int     `yaml:"price_lookahead_days"`
	Reflection          bool    `yaml:"reflection"`
	SaveStates          bool    `yaml:"save_states"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
	DefaultMarket       string  `yaml:"default_market"`
}

type CalendarConfig struct {
	Path string `yaml:"path"`
}

type PricingConfig struct {
	DataRoot string `yaml:"data_root"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
