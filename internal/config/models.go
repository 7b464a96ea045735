package config

import (
	"strings"
	"time"
)

// ResolveModel 返回模型名与对应的提供方；未知或空模型回落到默认模型。
func (p PipelineConfig) ResolveModel(name string) (string, ModelPreset) {
	name = strings.TrimSpace(name)
	if preset, ok := p.Models[name]; ok {
		return name, preset
	}
	if preset, ok := p.Models[p.DefaultModel]; ok {
		return p.DefaultModel, preset
	}
	return defaultPipelineModel, defaultModelPresets[defaultPipelineModel]
}

// Timeout 返回单次流水线调用的超时；0 表示不设上限。
func (p PipelineConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (s StreamConfig) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatSeconds) * time.Second
}

func (s StreamConfig) PollInterval() time.Duration {
	return time.Duration(s.PollMillis) * time.Millisecond
}

// CallDelay 是回测相邻交易日之间的固定间隔。
func (b BacktestConfig) CallDelay() time.Duration {
	return time.Duration(b.APICallDelaySeconds * float64(time.Second))
}
