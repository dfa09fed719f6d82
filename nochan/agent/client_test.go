package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// writeFakeAgent writes an executable shell script standing in for the agent
// CLI. Scripts receive the real argument list (run --format json [-s token]
// prompt) and emit whatever JSONL the test needs.
func writeFakeAgent(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755)
	require.NoError(t, err)
	return path
}

func TestInvokeSuccess(t *testing.T) {
	script := writeFakeAgent(t, `
printf '%s\n' '{"type":"step_start","sessionID":"ses_ok"}'
printf '%s\n' '{"type":"text","part":{"text":"hello "}}'
printf '%s\n' '{"type":"text","part":{"text":"there"}}'
printf '%s\n' '{"type":"step_finish","part":{"reason":"stop"}}'
`)
	client := NewClient(script, t.TempDir(), 1, zerolog.Nop())

	res, err := client.Invoke(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "hello there", res.Content)
	assert.Equal(t, "ses_ok", res.ContinuationToken)
}

func TestInvokePassesContinuationToken(t *testing.T) {
	// The script echoes its argument list back as the reply text
	script := writeFakeAgent(t, `
printf '{"type":"text","part":{"text":"args:%s"}}\n' "$*"
`)
	client := NewClient(script, t.TempDir(), 1, zerolog.Nop())

	res, err := client.Invoke(context.Background(), "ses_42", "ping")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeSuccess, res.Outcome)
	assert.Contains(t, res.Content, "-s ses_42")
	assert.Contains(t, res.Content, "run --format json")

	res, err = client.Invoke(context.Background(), "", "ping")
	require.NoError(t, err)
	assert.NotContains(t, res.Content, "-s")
}

func TestInvokeNonZeroExit(t *testing.T) {
	script := writeFakeAgent(t, `
printf '%s\n' '{"type":"text","sessionID":"ses_x","part":{"text":"partial"}}'
exit 3
`)
	client := NewClient(script, t.TempDir(), 1, zerolog.Nop())

	res, err := client.Invoke(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeFailure, res.Outcome)
	assert.Contains(t, res.ErrorDetail, "exited with code 3")
	// Text decoded before the failing exit stays attached
	assert.Equal(t, "partial", res.Content)
}

func TestInvokeExecutableNotFound(t *testing.T) {
	client := NewClient("nochan-no-such-agent-binary", t.TempDir(), 1, zerolog.Nop())

	res, err := client.Invoke(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeFailure, res.Outcome)
	assert.Contains(t, res.ErrorDetail, "agent executable not found")
}

func TestAtCapacityTracksInFlightInvocations(t *testing.T) {
	script := writeFakeAgent(t, `
sleep 0.3
printf '%s\n' '{"type":"text","part":{"text":"done"}}'
`)
	client := NewClient(script, t.TempDir(), 1, zerolog.Nop())

	assert.False(t, client.AtCapacity())

	done := make(chan ports.InvocationResult, 1)
	go func() {
		res, _ := client.Invoke(context.Background(), "", "slow")
		done <- res
	}()

	require.Eventually(t, client.AtCapacity, time.Second, 5*time.Millisecond,
		"capacity should report full while the single slot is held")

	res := <-done
	assert.Equal(t, ports.OutcomeSuccess, res.Outcome)
	assert.False(t, client.AtCapacity())
}

func TestCancellationReleasesSlot(t *testing.T) {
	script := writeFakeAgent(t, `
sleep 5
`)
	client := NewClient(script, t.TempDir(), 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Invoke(ctx, "", "doomed")
		errCh <- err
	}()

	require.Eventually(t, client.AtCapacity, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled invocation did not return")
	}

	// Cancellation must not leak the slot or the pending count
	assert.False(t, client.AtCapacity())
}
