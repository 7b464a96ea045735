package config

import (
	"fmt"
	"net/url"
	"strings"

	"tradecrew/internal/calendar"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level unsupported: %s", a.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json")
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(p.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("pipeline.base_url is not a valid url: %q", p.BaseURL)
	}
	if _, err := calendar.ParseMarket(p.DefaultMarket); err != nil {
		return fmt.Errorf("pipeline.default_market: %w", err)
	}
	if strings.TrimSpace(p.TerminalNode) == "" {
		return fmt.Errorf("pipeline.terminal_node cannot be empty")
	}
	if _, ok := p.Models[p.DefaultModel]; !ok {
		return fmt.Errorf("pipeline.default_model %s is not configured", p.DefaultModel)
	}
	for name, preset := range p.Models {
		if strings.TrimSpace(preset.Provider) == "" {
			return fmt.Errorf("pipeline.models.%s missing provider", name)
		}
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.APICallDelaySeconds < 0 {
		return fmt.Errorf("backtest.api_call_delay_seconds must be >= 0")
	}
	if b.PriceLookaheadDays <= 0 {
		return fmt.Errorf("backtest.price_lookahead_days must be > 0")
	}
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("backtest.max_concurrent must be > 0")
	}
	if _, err := calendar.ParseMarket(b.DefaultMarket); err != nil {
		return fmt.Errorf("backtest.default_market: %w", err)
	}
	return nil
}
