package toolchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docxology/go-manuscript/internal/process"
)

// probeTimeout bounds a single --version call.
const probeTimeout = 10 * time.Second

// Tools lists every executable the build may invoke, pandoc first.
func Tools() []string {
	tools := []string{PandocBinary}
	for _, e := range Engines() {
		tools = append(tools, e.Binary())
	}
	return append(tools, BibTeX.String(), Biber.String())
}

// Probe runs "<binary> --version" and returns the first output line.
func Probe(ctx context.Context, runner process.Runner, binary string) (string, error) {
	out, err := runner.Run(ctx, process.Command{
		Name:    binary,
		Args:    []string{"--version"},
		Timeout: probeTimeout,
	})
	if err != nil {
		return "", classify(binary, err)
	}
	if out.ExitCode != 0 {
		return "", newToolError(binary, out.ExitCode, out.Stderr, out.Stdout)
	}

	text := strings.TrimSpace(out.Stdout)
	if text == "" {
		text = strings.TrimSpace(out.Stderr)
	}
	if text == "" {
		return "", fmt.Errorf("%s --version produced no output", binary)
	}
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line), nil
}
