package stream

import (
	"context"
	"time"

	"tradecrew/internal/decision"
	"tradecrew/internal/pipeline"
)

// Reconstruct 把 (节点, token) 序列还原为逐阶段的 node_start/token/node_end 事件。
// 终止节点（默认 portfolio_manager）的累计文本决定最终决策，缺省为 HOLD。
// 源空闲时按 Options.Heartbeat 补发心跳。
func Reconstruct(ctx context.Context, src <-chan pipeline.TokenEvent, opts Options) <-chan Event {
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	poll := opts.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	terminal := opts.TerminalNode
	if terminal == "" {
		terminal = pipeline.TerminalNode
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		r := &reconstructor{terminal: terminal, buffers: make(map[string]string)}
		emit := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !emit(Heartbeat(StartContent)) {
			return
		}
		last := time.Now()
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if now.Sub(last) >= heartbeat {
					if !emit(Heartbeat("")) {
						return
					}
					last = time.Now()
				}
			case ev, ok := <-src:
				if !ok {
					for _, e := range r.finish() {
						if !emit(e) {
							return
						}
					}
					return
				}
				if ev.Err != nil {
					emit(FailureEvent(ev.Err, ClassifyError))
					return
				}
				for _, e := range r.step(ev) {
					if !emit(e) {
						return
					}
				}
				last = time.Now()
			}
		}
	}()
	return out
}

type reconstructor struct {
	terminal string
	current  string
	buffers  map[string]string
	final    string
}

func (r *reconstructor) step(ev pipeline.TokenEvent) []Event {
	var out []Event
	if ev.Node != "" && ev.Node != r.current {
		out = append(out, r.close()...)
		r.current = ev.Node
		if _, started := r.buffers[ev.Node]; !started {
			r.buffers[ev.Node] = ""
			out = append(out, StageStart(pipeline.StageForNode(ev.Node)))
		}
	}
	if ev.Token != "" && r.current != "" {
		r.buffers[r.current] += ev.Token
		out = append(out, Token(pipeline.StageForNode(r.current), ev.Token))
	}
	return out
}

// close 结束当前节点；节点重入时会以完整累计文本再次结束。
func (r *reconstructor) close() []Event {
	if r.current == "" {
		return nil
	}
	text, ok := r.buffers[r.current]
	if !ok {
		return nil
	}
	if r.current == r.terminal {
		r.final = text
	}
	return []Event{StageEnd(pipeline.StageForNode(r.current), text)}
}

func (r *reconstructor) finish() []Event {
	out := r.close()
	return append(out, Complete(decision.Normalize(r.final).String()))
}
