// Package agent runs the OpenCode CLI as a child process, decodes its JSONL
// event output, and enforces a global ceiling on concurrent invocations.
package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// maxEventLine bounds a single JSONL event line from the agent.
const maxEventLine = 1024 * 1024

// Client invokes the agent CLI under a weighted-semaphore concurrency gate.
type Client struct {
	command       string
	workDir       string
	maxConcurrent int64
	slots         *semaphore.Weighted
	// invocations currently holding or waiting for a slot
	pending atomic.Int64
	logger  zerolog.Logger
}

// NewClient creates a client for the given executable. maxConcurrent must be
// at least 1; lower values are clamped.
func NewClient(command, workDir string, maxConcurrent int, logger zerolog.Logger) *Client {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Client{
		command:       command,
		workDir:       workDir,
		maxConcurrent: int64(maxConcurrent),
		slots:         semaphore.NewWeighted(int64(maxConcurrent)),
		logger:        logger.With().Str("component", "agent").Logger(),
	}
}

// AtCapacity reports whether all execution slots are held or waited on.
// Point-in-time and advisory: callers use it for a "queued" notice, not for
// admission control.
func (c *Client) AtCapacity() bool {
	return c.pending.Load() >= c.maxConcurrent
}

// Invoke runs the agent once for the given prompt, blocking until a slot is
// free. The slot is released on every exit path, including cancellation.
// Tool failures come back in the result; the only non-nil error is the
// caller's context error.
func (c *Client) Invoke(ctx context.Context, continuationToken, prompt string) (ports.InvocationResult, error) {
	c.pending.Add(1)
	defer c.pending.Add(-1)

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return ports.InvocationResult{}, err
	}
	defer c.slots.Release(1)

	return c.run(ctx, continuationToken, prompt)
}

func (c *Client) run(ctx context.Context, continuationToken, prompt string) (ports.InvocationResult, error) {
	args := []string{"run", "--format", "json"}
	if continuationToken != "" {
		args = append(args, "-s", continuationToken)
	}
	args = append(args, prompt)

	session := continuationToken
	if session == "" {
		session = "new"
	}
	c.logger.Info().Str("session", session).Str("prompt", truncate(prompt, 100)).Msg("Running agent")

	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Dir = c.workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return failure(fmt.Sprintf("failed to open agent stdout: %v", err)), nil
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return failure(fmt.Sprintf("failed to open agent stderr: %v", err)), nil
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			c.logger.Error().Str("command", c.command).Msg("Agent executable not found")
			return failure(fmt.Sprintf("agent executable not found: %s", c.command)), nil
		}
		c.logger.Error().Err(err).Msg("Agent launch failed")
		return failure(err.Error()), nil
	}

	// Drain stderr concurrently so a full pipe can never stall the child
	stderrCh := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(stderr)
		stderrCh <- strings.TrimSpace(string(data))
	}()

	// Decode stdout incrementally as events arrive
	decoder := newStreamDecoder(c.logger)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)
	for scanner.Scan() {
		decoder.decodeLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Agent stdout read error")
	}

	if errText := <-stderrCh; errText != "" {
		c.logger.Warn().Str("stderr", truncate(errText, 500)).Msg("Agent stderr")
	}

	waitErr := cmd.Wait()

	// Cancellation is a normal termination path, not a failure
	if ctx.Err() != nil {
		c.logger.Info().Str("session", session).Msg("Agent invocation cancelled")
		return ports.InvocationResult{}, ctx.Err()
	}

	if waitErr != nil {
		res := decoder.result()
		res.Outcome = ports.OutcomeFailure
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ErrorDetail = fmt.Sprintf("agent process exited with code %d", exitErr.ExitCode())
			c.logger.Error().Int("exit_code", exitErr.ExitCode()).Msg("Agent exited with non-zero status")
		} else {
			res.ErrorDetail = waitErr.Error()
			c.logger.Error().Err(waitErr).Msg("Agent execution failed")
		}
		return res, nil
	}

	res := decoder.result()
	c.logger.Info().
		Str("session", res.ContinuationToken).
		Int("content_len", len(res.Content)).
		Bool("failed", res.Failed()).
		Msg("Agent invocation complete")
	return res, nil
}

func failure(detail string) ports.InvocationResult {
	return ports.InvocationResult{
		Outcome:     ports.OutcomeFailure,
		ErrorDetail: detail,
	}
}

// Ensure Client implements the AgentClient port.
var _ ports.AgentClient = (*Client)(nil)
