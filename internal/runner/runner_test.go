package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/logging"
)

// fakeAgent exercises the runner against a real subprocess that plays back
// canned stream-json lines, mirroring how the original collaborator's test
// suite drives CCRunner against a scripted shell script instead of the real
// CLI. /bin/sh is assumed present, matching the subprocess contract itself
// (an external binary on PATH).
func TestRunStreamsParsedEvents(t *testing.T) {
	r := New("/bin/sh", logging.Default())

	// The fake "agent" ignores its arguments and prints two stream-json
	// lines plus one blank line (which must be skipped) and one malformed
	// line (which must be skipped silently) before exiting zero.
	script := `printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}' '' 'not json' '{"type":"result","result":"done","cost_usd":0.01}'`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := r.runScript(ctx, script)
	require.NoError(t, err)

	var got []event.Event
	for e := range events {
		got = append(got, e)
	}

	require.Len(t, got, 2)
	assert.Equal(t, event.TypeAssistant, got[0].Type)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, event.TypeResult, got[1].Type)
	assert.InDelta(t, 0.01, got[1].CostUSD, 1e-9)
}

func TestRunReturnsSpawnErrorWhenBinaryMissing(t *testing.T) {
	r := New("/no/such/agent-binary", logging.Default())
	_, err := r.Run(context.Background(), "prompt", "", "")
	require.Error(t, err)
}

func TestRunClosesChannelOnProcessExit(t *testing.T) {
	r := New("/bin/sh", logging.Default())
	events, err := r.runScript(context.Background(), `printf '%s\n' '{"type":"result","result":"ok"}'`)
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	count := 0
	for {
		select {
		case e, ok := <-events:
			if !ok {
				assert.Equal(t, 1, count)
				return
			}
			count++
			_ = e
		case <-deadline:
			t.Fatal("events channel never closed")
		}
	}
}
