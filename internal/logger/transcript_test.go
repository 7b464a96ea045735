package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogStageOutput(t *testing.T) {
	var buf bytes.Buffer
	SetTranscriptWriter(&buf)
	t.Cleanup(func() { SetTranscriptWriter(nil) })

	assert.True(t, TranscriptEnabled())
	LogStageOutput("req-1", "Market Analyst", "uptrend")

	out := buf.String()
	assert.Contains(t, out, "[STAGE][req-1][Market Analyst]")
	assert.Contains(t, out, "uptrend\n=====")
}

func TestLogStageOutputDisabled(t *testing.T) {
	SetTranscriptWriter(nil)
	assert.False(t, TranscriptEnabled())
	LogStageOutput("req-1", "Trader", "noop")
}

func TestSetFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat("json")
	t.Cleanup(func() {
		SetFormat("text")
		SetOutput(nil)
	})
	Infof("hello %d", 1)
	assert.Contains(t, buf.String(), `"msg":"hello 1"`)
}
