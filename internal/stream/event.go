package stream

// Kind 是流事件类型，取值即 token 模式下的 wire 名称。
type Kind string

const (
	KindHeartbeat    Kind = "heartbeat"
	KindStageStart   Kind = "node_start"
	KindToken        Kind = "token"
	KindStageEnd     Kind = "node_end"
	KindComplete     Kind = "complete"
	KindError        Kind = "error"
	KindQuotaError   Kind = "quota_error"
	KindTimeoutError Kind = "timeout_error"
)

// StartContent 是每条流首个心跳携带的内容。
const StartContent = "Analysis started"

// Terminal 报告该类型是否结束一条流。
func (k Kind) Terminal() bool {
	switch k {
	case KindComplete, KindError, KindQuotaError, KindTimeoutError:
		return true
	default:
		return false
	}
}

// Failure 报告该类型是否为错误终止。
func (k Kind) Failure() bool {
	return k.Terminal() && k != KindComplete
}

// Event 是推送给客户端的单个事件。Stage/Content 为 nil 表示缺省。
type Event struct {
	Kind    Kind
	Stage   *string
	Content *string
}

// StageName 返回阶段名，缺省为空串。
func (e Event) StageName() string {
	if e.Stage == nil {
		return ""
	}
	return *e.Stage
}

// Text 返回内容，缺省为空串。
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}

// Heartbeat 构造心跳；content 为空时不携带内容。
func Heartbeat(content string) Event {
	ev := Event{Kind: KindHeartbeat}
	if content != "" {
		ev.Content = &content
	}
	return ev
}

func StageStart(stage string) Event {
	return Event{Kind: KindStageStart, Stage: &stage}
}

func Token(stage, token string) Event {
	return Event{Kind: KindToken, Stage: &stage, Content: &token}
}

func StageEnd(stage, content string) Event {
	return Event{Kind: KindStageEnd, Stage: &stage, Content: &content}
}

// Complete 携带归一化后的最终决策。
func Complete(decision string) Event {
	return Event{Kind: KindComplete, Content: &decision}
}

// Failed 构造错误终止事件；kind 应为错误类之一。
func Failed(kind Kind, message string) Event {
	if !kind.Failure() {
		kind = KindError
	}
	return Event{Kind: kind, Content: &message}
}
