package pipeline

import "context"

// DefaultAnalysts 是未指定分析师时启用的阶段集合。
var DefaultAnalysts = []string{"market", "social", "news", "fundamentals"}

// Request 描述一次流水线运行的输入。
type Request struct {
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	Market   string   `json:"market"`
	Analysts []string `json:"analysts"`
	Model    string   `json:"model"`
	Provider string   `json:"provider,omitempty"`
}

// TokenEvent 是逐 token 模式下的单个输出片段。
// Err 非空时表示源在此处失败，之后不再有事件。
type TokenEvent struct {
	Node  string
	Token string
	Err   error
}

// Runner 以阻塞方式运行整条流水线，每产生一个累积快照就回调 onSnapshot，最终返回末态快照。
type Runner interface {
	Run(ctx context.Context, req Request, onSnapshot func(Snapshot)) (Snapshot, error)
}

// TokenStreamer 以异步方式逐 token 输出；通道在源耗尽或出错后关闭。
type TokenStreamer interface {
	StreamTokens(ctx context.Context, req Request) (<-chan TokenEvent, error)
}

// Pipeline 同时具备两种运行形态。
type Pipeline interface {
	Runner
	TokenStreamer
}

// Reflector 是可选能力：回测中将单日收益回灌给流水线的记忆。
type Reflector interface {
	Reflect(ctx context.Context, req Request, returnPct float64) error
}

// Factory 为每个请求（或每次回测）创建全新的流水线实例，实例之间不共享状态。
type Factory func() (Pipeline, error)
