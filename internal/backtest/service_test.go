package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRunsAsync(t *testing.T) {
	p := &fakePipeline{decisions: map[string]string{"2024-01-08": "BUY"}}
	svc, err := NewService(ServiceConfig{Engine: newTestEngine(t, p, &staticSource{series: weekSeries(t)}, nil)})
	require.NoError(t, err)

	run, err := svc.Submit(weekRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	require.Eventually(t, func() bool {
		snap, ok := svc.RunSnapshot(run.ID)
		return ok && snap.Status == RunStatusDone
	}, 5*time.Second, 10*time.Millisecond)

	snap, _ := svc.RunSnapshot(run.ID)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Result.Trades, 5)
	assert.Equal(t, Progress{Current: 5, Total: 5, Date: "2024-01-12"}, snap.Progress)

	list := svc.RunsSnapshot()
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Result)
}

func TestServiceRejectsInvalidRequest(t *testing.T) {
	svc, err := NewService(ServiceConfig{Engine: newTestEngine(t, &fakePipeline{}, &staticSource{}, nil)})
	require.NoError(t, err)
	_, err = svc.Submit(Request{Symbol: "AAPL"})
	assert.Error(t, err)
	assert.Empty(t, svc.RunsSnapshot())

	_, ok := svc.RunSnapshot("missing")
	assert.False(t, ok)
}

func TestNewServiceRequiresEngine(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)
}
