package stream

import (
	"context"
	"errors"
	"strings"
)

var quotaKeywords = []string{
	"insufficient_quota",
	"insufficient_balance",
	"quota exceeded",
	"rate limit",
	"billing",
	"payment required",
	"account_deactivated",
}

var timeoutKeywords = []string{
	"timeout",
	"timed out",
	"connection",
	"reset by peer",
	"connection refused",
	"network",
	"unreachable",
	"ssl",
	"certificate",
	"tls",
	"deadline exceeded",
}

// Classify 依据错误文本归类：先配额，再超时/网络，其余为一般错误。
func Classify(message string) Kind {
	lower := strings.ToLower(message)
	if containsAny(lower, quotaKeywords) {
		return KindQuotaError
	}
	if containsAny(lower, timeoutKeywords) {
		return KindTimeoutError
	}
	return KindError
}

// ClassifyError 是 Classify 的 error 版本；ctx 超时直接归为超时类。
func ClassifyError(err error) Kind {
	if err == nil {
		return KindError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeoutError
	}
	return Classify(err.Error())
}

// FailureEvent 将错误转为带分类的终止事件。
func FailureEvent(err error, classify func(error) Kind) Event {
	if classify == nil {
		classify = ClassifyError
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Failed(classify(err), "Analysis error: "+msg)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
