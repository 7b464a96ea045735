package stream

import (
	"encoding/json"
	"io"
)

// ContentType 是两种流模式共用的响应类型。
const ContentType = "application/x-ndjson"

// 快照模式下的保留 agent 名。
const (
	AgentHeartbeat = "__HEARTBEAT__"
	AgentError     = "__ERROR__"
	AgentFinal     = "__FINAL__"
)

// Format 选择 NDJSON 行的形状。
type Format int

const (
	// FormatSnapshot 输出 {"agent","content"}。
	FormatSnapshot Format = iota
	// FormatToken 输出 {"type","agent","content"}。
	FormatToken
)

type snapshotLine struct {
	Agent   string  `json:"agent"`
	Content *string `json:"content"`
}

type tokenLine struct {
	Type    Kind    `json:"type"`
	Agent   *string `json:"agent"`
	Content *string `json:"content"`
}

// Encoder 逐行写出事件，每行一个 JSON 对象。
type Encoder struct {
	enc    *json.Encoder
	format Format
}

func NewEncoder(w io.Writer, format Format) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc, format: format}
}

// Encode 写出一行。
func (e *Encoder) Encode(ev Event) error {
	if e.format == FormatToken {
		return e.enc.Encode(tokenLine{Type: ev.Kind, Agent: ev.Stage, Content: ev.Content})
	}
	return e.enc.Encode(snapshotLine{Agent: snapshotAgent(ev), Content: ev.Content})
}

func snapshotAgent(ev Event) string {
	switch {
	case ev.Kind == KindHeartbeat:
		return AgentHeartbeat
	case ev.Kind == KindComplete:
		return AgentFinal
	case ev.Kind.Failure():
		return AgentError
	default:
		return ev.StageName()
	}
}
