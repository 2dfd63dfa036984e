package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"fireshare/internal/logging"
)

// ErrTimeout is returned by a Runner when a command exceeded its deadline.
var ErrTimeout = errors.New("command timed out")

// waitDelay bounds how long Wait blocks on I/O after the process is killed.
const waitDelay = 5 * time.Second

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. A non-zero exit is reported through
// Result.ExitCode with a nil error; errors are reserved for commands that
// could not be started, were cancelled, or timed out (ErrTimeout).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec and tracks live processes so they
// can be killed on shutdown.
type ExecRunner struct {
	processes map[int]*exec.Cmd
	processMu sync.Mutex
	nextID    int
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		processes: make(map[int]*exec.Cmd),
	}
}

// Run starts the command and waits for it. The process is killed when ctx
// is done.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start %s: %w", name, err)
	}

	id := r.track(cmd)
	defer r.untrack(id)

	waitErr := cmd.Wait()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		return result, ctxErr
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("%s failed: %w", name, waitErr)
	}

	return result, nil
}

func (r *ExecRunner) track(cmd *exec.Cmd) int {
	r.processMu.Lock()
	defer r.processMu.Unlock()
	r.nextID++
	r.processes[r.nextID] = cmd
	return r.nextID
}

func (r *ExecRunner) untrack(id int) {
	r.processMu.Lock()
	delete(r.processes, id)
	r.processMu.Unlock()
}

// Active returns the number of running subprocesses.
func (r *ExecRunner) Active() int {
	r.processMu.Lock()
	defer r.processMu.Unlock()
	return len(r.processes)
}

// Cleanup kills all running subprocesses.
func (r *ExecRunner) Cleanup() {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	for _, cmd := range r.processes {
		if cmd.Process != nil {
			logging.Info("Killing %s process (pid %d)", cmd.Path, cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill %s process: %v", cmd.Path, err)
			}
		}
	}
}
