// Package process runs external tools as blocking child processes.
//
// Every invocation runs under a bounded timeout in its own process group. A
// non-zero exit status is not an error at this layer: callers decide whether
// an exit code is fatal (pandoc), tolerable (bibtex), or one signal among
// several (pdflatex).
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Sentinel errors for process execution.
var (
	ErrNotFound = errors.New("executable not found")
	ErrTimeout  = errors.New("process timed out")
)

// DefaultMaxOutputBytes caps captured stdout/stderr per stream.
const DefaultMaxOutputBytes = 1 << 20

// waitDelay bounds how long Wait blocks on open pipes after the group is killed.
const waitDelay = 2 * time.Second

// Command describes one tool invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string        // working directory; empty = current
	Timeout time.Duration // zero = no timeout beyond ctx
}

// Output holds the captured result of a finished process.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner abstracts command execution to enable testing without real subprocesses.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Output, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct {
	MaxOutputBytes int
}

// NewExecRunner returns an ExecRunner with default output limits.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{MaxOutputBytes: DefaultMaxOutputBytes}
}

// Run starts the command and blocks until it exits, times out, or ctx is done.
// A non-nil *Output is returned whenever the process was started.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Output, error) {
	path, err := exec.LookPath(c.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, c.Args...) // #nosec G204 -- tool names come from a closed set
	cmd.Dir = c.Dir
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		KillProcessGroup(cmd.Process.Pid)
		return nil
	}
	cmd.WaitDelay = waitDelay

	limit := r.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	stdout := &tailBuffer{max: limit}
	stderr := &tailBuffer{max: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.ExitCode = -1
		return out, fmt.Errorf("%w: %s after %s", ErrTimeout, c.Name, c.Timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		out.ExitCode = -1
		return out, ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("running %s: %w", c.Name, runErr)
	}

	return out, nil
}

// tailBuffer keeps the last max bytes written to it. Compiler diagnostics
// that matter sit at the end of the stream.
type tailBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= b.max {
		b.buf.Reset()
		b.buf.Write(p[len(p)-b.max:])
		b.truncated = true
		return n, nil
	}
	if over := b.buf.Len() + len(p) - b.max; over > 0 {
		b.buf.Next(over)
		b.truncated = true
	}
	b.buf.Write(p)
	return n, nil
}

func (b *tailBuffer) String() string {
	return b.buf.String()
}
