package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docxology/go-manuscript/internal/process"
)

// Sentinel errors for toolchain operations.
var (
	ErrTranslation    = errors.New("markup translation failed")
	ErrCompilation    = errors.New("compilation failed")
	ErrToolNotFound   = errors.New("required tool not found")
	ErrToolTimeout    = errors.New("tool invocation timed out")
	ErrInvalidEngine  = errors.New("invalid engine")
	ErrInvalidBibTool = errors.New("invalid bibliography tool")
	ErrInvalidJob     = errors.New("invalid compilation job")
)

// Output tail limits for ToolError.
const (
	TailLines = 20
	TailBytes = 2 << 10
)

// ToolError describes a failed external tool invocation.
type ToolError struct {
	Tool     string
	ExitCode int    // -1 when the process did not exit on its own
	Output   string // trimmed tail of the captured output
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if e.ExitCode < 0 {
		msg = e.Tool + " did not exit"
	}
	if e.Output != "" {
		msg += ":\n" + e.Output
	}
	return msg
}

// newToolError builds a ToolError from captured streams. Some tools report
// diagnostics on stdout, so both streams are kept, stderr first.
func newToolError(tool string, exitCode int, streams ...string) *ToolError {
	var parts []string
	for _, s := range streams {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return &ToolError{
		Tool:     tool,
		ExitCode: exitCode,
		Output:   Tail(strings.Join(parts, "\n"), TailLines, TailBytes),
	}
}

// Tail returns at most the last maxLines lines and maxBytes bytes of s.
// Truncation never splits a line when a line boundary is available.
func Tail(s string, maxLines, maxBytes int) string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	out := strings.Join(lines, "\n")

	if maxBytes > 0 && len(out) > maxBytes {
		out = out[len(out)-maxBytes:]
		if i := strings.IndexByte(out, '\n'); i >= 0 && i < len(out)-1 {
			out = out[i+1:]
		}
	}
	return out
}

// MissingToolError names an executable that is not on PATH.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return ErrToolNotFound.Error() + ": " + e.Tool
}

func (e *MissingToolError) Unwrap() error { return ErrToolNotFound }

// classify maps runner errors onto toolchain sentinels.
func classify(tool string, err error) error {
	switch {
	case errors.Is(err, process.ErrNotFound):
		return &MissingToolError{Tool: tool}
	case errors.Is(err, process.ErrTimeout):
		return fmt.Errorf("%w: %s", ErrToolTimeout, tool)
	}
	return err
}
