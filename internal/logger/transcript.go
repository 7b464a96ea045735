package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	transcriptMu  sync.Mutex
	transcriptLog *log.Logger
)

// SetTranscriptWriter 设置阶段产出的转录文件；nil 关闭转录。
func SetTranscriptWriter(w io.Writer) {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	if w == nil {
		transcriptLog = nil
		return
	}
	transcriptLog = log.New(w, "", log.LstdFlags)
}

// TranscriptEnabled 报告是否配置了转录输出。
func TranscriptEnabled() bool {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	return transcriptLog != nil
}

// LogStageOutput 记录某个请求中单个阶段的完整输出。
func LogStageOutput(requestID, stage, content string) {
	transcriptMu.Lock()
	out := transcriptLog
	transcriptMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[STAGE]")
	if requestID != "" {
		b.WriteString("[")
		b.WriteString(requestID)
		b.WriteString("]")
	}
	b.WriteString("[")
	b.WriteString(strings.TrimSpace(stage))
	b.WriteString("]\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}
