package sink

import (
	"context"
	"fmt"
	"testing"

	"quorum/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) SendText(text string) error {
	n.messages = append(n.messages, text)
	return n.err
}

func sampleIntent() OrderIntent {
	return OrderIntent{
		Decision: engine.Decision{
			TraceID:    "t-99",
			Symbol:     "BTCUSDT",
			Action:     engine.ActionBuy,
			Exposure:   0.12,
			ReasonCode: engine.ReasonConsensus,
		},
		Notional: 12000,
	}
}

func TestLogSinkNotifies(t *testing.T) {
	n := &recordingNotifier{}
	s := NewLogSink(n)

	require.NoError(t, s.Submit(context.Background(), sampleIntent()))
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "BTCUSDT")
	assert.Contains(t, n.messages[0], "BUY")
	assert.Contains(t, n.messages[0], "t-99")
}

func TestLogSinkSwallowsNotifyErrors(t *testing.T) {
	n := &recordingNotifier{err: fmt.Errorf("telegram down")}
	s := NewLogSink(n)
	assert.NoError(t, s.Submit(context.Background(), sampleIntent()),
		"a failed announcement must not fail the order path")
}

func TestLogSinkNilNotifierDefaultsToNoop(t *testing.T) {
	s := NewLogSink(nil)
	assert.NoError(t, s.Submit(context.Background(), sampleIntent()))
}

func TestLogSinkHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := &recordingNotifier{}
	err := NewLogSink(n).Submit(ctx, sampleIntent())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, n.messages)
}
