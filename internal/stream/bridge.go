package stream

import (
	"context"
	"errors"
	"time"

	"tradecrew/internal/decision"
	"tradecrew/internal/pipeline"
)

// Options 是快照模式与 token 模式共用的流参数。
type Options struct {
	Heartbeat time.Duration
	Poll      time.Duration
	Buffer    int
	// TerminalNode 仅用于 token 模式，为空时取 pipeline.TerminalNode。
	TerminalNode string
}

// SnapshotStream 运行一次阻塞流水线，把累积快照转为逐阶段增量事件。
// 每次调用拥有独立的 processed 集合；最终事件为归一化后的决策。
func SnapshotStream(ctx context.Context, runner pipeline.Runner, req pipeline.Request, opts Options) <-chan Event {
	processed := NewProcessed()
	var final pipeline.Snapshot

	adapter := Adapter[pipeline.Snapshot]{
		Heartbeat:    opts.Heartbeat,
		Poll:         opts.Poll,
		Buffer:       opts.Buffer,
		Classify:     ClassifyError,
		StartContent: StartContent,
		OnData: func(snap pipeline.Snapshot) []Event {
			updates := Extract(snap, processed)
			events := make([]Event, 0, len(updates))
			for _, u := range updates {
				events = append(events, StageEnd(u.Stage, u.Content))
			}
			return events
		},
		OnDone: func() Event {
			return Complete(decision.Normalize(final.FinalTradeDecision).String())
		},
	}
	return adapter.Stream(ctx, func(ctx context.Context, emit func(pipeline.Snapshot)) error {
		if runner == nil {
			return errors.New("pipeline not available")
		}
		snap, err := runner.Run(ctx, req, emit)
		if err != nil {
			return err
		}
		// 末态快照可能未经回调送达，补发一次；重复内容会被 processed 过滤。
		emit(snap)
		final = snap
		return nil
	})
}

// Fail 返回只含起始心跳与一个错误终止事件的流，用于流水线无法构建的情况。
func Fail(err error) <-chan Event {
	out := make(chan Event, 2)
	out <- Heartbeat(StartContent)
	out <- FailureEvent(err, ClassifyError)
	close(out)
	return out
}
