// Package runner spawns the coding-agent CLI as a subprocess against a
// worktree and streams its stdout, line by line, into normalized events.
package runner

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"go.uber.org/zap"

	"github.com/jhinpan/cc-boss/internal/apperr"
	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/logging"
)

// Runner spawns the agent CLI and streams its events.
type Runner struct {
	agentCommand string
	logger       *logging.Logger
}

// New builds a Runner that invokes agentCommand (e.g. "claude").
func New(agentCommand string, log *logging.Logger) *Runner {
	return &Runner{agentCommand: agentCommand, logger: log}
}

// Run starts the agent subprocess with prompt against workspacePath, using
// worktree name workspaceName (passed through as --worktree when non-empty),
// and streams its parsed events on the returned channel. The channel is
// closed when the subprocess exits, whether cleanly or not; a process that
// exits non-zero is not itself an error here — callers observe failure
// through the event stream (is_error events) and the process exit, not a
// returned error. Run only returns an error if the subprocess could not be
// started at all.
//
// The subprocess is always reaped via cmd.Wait, on every exit path,
// including context cancellation.
func (r *Runner) Run(ctx context.Context, prompt, workspacePath, workspaceName string) (<-chan event.Event, error) {
	args := []string{"-p", prompt, "--dangerously-skip-permissions", "--output-format", "stream-json", "--verbose"}
	if workspaceName != "" {
		args = append(args, "--worktree", workspaceName)
	}

	cmd := exec.CommandContext(ctx, r.agentCommand, args...)
	if workspacePath != "" {
		cmd.Dir = workspacePath
	}

	return r.start(ctx, cmd)
}

// runScript is a test seam: it runs a shell script through the configured
// shell binary instead of building the real agent CLI arguments, so the
// read loop and parse/skip semantics can be exercised without the real
// agent binary on PATH.
func (r *Runner) runScript(ctx context.Context, script string) (<-chan event.Event, error) {
	cmd := exec.CommandContext(ctx, r.agentCommand, "-c", script)
	return r.start(ctx, cmd)
}

func (r *Runner) start(ctx context.Context, cmd *exec.Cmd) (<-chan event.Event, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Spawn("failed to open agent stdout pipe", err)
	}
	// Agent stderr is not part of the protocol; drain it so the process
	// never blocks on a full pipe, but don't surface it as events.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperr.Spawn("failed to open agent stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperr.Spawn("failed to start agent process", err)
	}

	events := make(chan event.Event, 64)

	go drainStderr(stderr, r.logger)
	go r.readLoop(ctx, stdout, cmd, events)

	return events, nil
}

func (r *Runner) readLoop(ctx context.Context, stdout io.Reader, cmd *exec.Cmd, events chan<- event.Event) {
	defer close(events)
	defer func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Debug("agent process exited", zap.Error(err))
		}
	}()

	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		evt, err := event.Parse(line)
		if err != nil {
			// Non-JSON or malformed lines are skipped silently: the agent
			// CLI sometimes writes human-readable banner lines to stdout
			// ahead of the first JSON record.
			continue
		}

		select {
		case events <- evt:
		case <-ctx.Done():
			// The consumer may have stopped reading; return so the
			// deferred cmd.Wait still reaps the (now killed) process.
			return
		}
	}

	if err := scanner.Err(); err != nil {
		r.logger.Warn("agent stdout scan error", zap.Error(err))
	}
}

func drainStderr(stderr io.Reader, log *logging.Logger) {
	scanner := bufio.NewScanner(stderr)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		log.Debug("agent stderr", zap.String("line", scanner.Text()))
	}
}
