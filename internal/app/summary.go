package app

import (
	"fmt"
	"sort"
	"strings"

	brcfg "tradecrew/internal/config"
)

// StartupSummary 是启动时打印的配置摘要。
type StartupSummary struct {
	HTTPAddr     string
	PipelineURL  string
	DefaultModel string
	Market       string
	Analysts     []string
	Models       map[string]string
	Heartbeat    int
	CallDelay    float64
	Reflection   bool
	CalendarPath string
	DataRoot     string
}

func newStartupSummary(cfg *brcfg.Config) *StartupSummary {
	models := make(map[string]string, len(cfg.Pipeline.Models))
	for name, preset := range cfg.Pipeline.Models {
		models[name] = preset.Provider
	}
	return &StartupSummary{
		HTTPAddr:     cfg.App.HTTPAddr,
		PipelineURL:  cfg.Pipeline.BaseURL,
		DefaultModel: cfg.Pipeline.DefaultModel,
		Market:       cfg.Pipeline.DefaultMarket,
		Analysts:     cfg.Pipeline.DefaultAnalysts,
		Models:       models,
		Heartbeat:    cfg.Stream.HeartbeatSeconds,
		CallDelay:    cfg.Backtest.APICallDelaySeconds,
		Reflection:   cfg.Backtest.Reflection,
		CalendarPath: cfg.Calendar.Path,
		DataRoot:     cfg.Pricing.DataRoot,
	}
}

func (s *StartupSummary) Print() {
	fmt.Print(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[服务 (SERVICE)]\n")
	fmt.Fprintf(&b, "  监听地址: %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "  流水线: %s\n", s.PipelineURL)
	fmt.Fprintf(&b, "  心跳间隔: %ds\n", s.Heartbeat)
	b.WriteString("\n")

	b.WriteString("[分析 (ANALYSIS)]\n")
	fmt.Fprintf(&b, "  默认市场: %s\n", s.Market)
	fmt.Fprintf(&b, "  默认分析师: %s\n", formatList(s.Analysts))
	fmt.Fprintf(&b, "  默认模型: %s\n", s.DefaultModel)
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "    - %s (%s)\n", name, s.Models[name])
	}
	b.WriteString("\n")

	b.WriteString("[回测 (BACKTEST)]\n")
	fmt.Fprintf(&b, "  调用间隔: %.1fs\n", s.CallDelay)
	fmt.Fprintf(&b, "  反思: %t\n", s.Reflection)
	fmt.Fprintf(&b, "  日历文件: %s\n", s.CalendarPath)
	fmt.Fprintf(&b, "  行情目录: %s\n", s.DataRoot)
	b.WriteString(strings.Repeat("=", 80) + "\n")
	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
