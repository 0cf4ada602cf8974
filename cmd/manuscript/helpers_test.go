package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	manuscript "github.com/docxology/go-manuscript"
	"github.com/docxology/go-manuscript/internal/config"
	"github.com/docxology/go-manuscript/internal/process"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fake toolchain
// ---------------------------------------------------------------------------

// fakeTools stands in for pandoc, the TeX engines and the bibliography tools.
// Binaries listed in missing behave as if absent from PATH.
type fakeTools struct {
	mu      sync.Mutex
	calls   []manuscript.Command
	missing map[string]bool
}

func newFakeTools(missing ...string) *fakeTools {
	f := &fakeTools{missing: map[string]bool{}}
	for _, m := range missing {
		f.missing[m] = true
	}
	return f
}

func (f *fakeTools) Run(_ context.Context, cmd manuscript.Command) (*manuscript.CommandOutput, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.missing[cmd.Name] {
		return nil, fmt.Errorf("%w: %s", process.ErrNotFound, cmd.Name)
	}
	if slices.Contains(cmd.Args, "--version") {
		return &manuscript.CommandOutput{Stdout: cmd.Name + " 1.0\nmore details\n"}, nil
	}

	switch cmd.Name {
	case "pandoc":
		out := cmd.Args[slices.Index(cmd.Args, "-o")+1]
		tex := "\\documentclass{article}\n\\begin{document}\nBody\n\\end{document}\n"
		if err := os.WriteFile(out, []byte(tex), 0o600); err != nil {
			return nil, err
		}
	case "pdflatex", "xelatex", "lualatex":
		base := filepath.Join(cmd.Dir, manuscript.WorkingName)
		log := "Output written on " + manuscript.WorkingName + ".pdf (1 page).\n"
		_ = os.WriteFile(base+".log", []byte(log), 0o600)
		_ = os.WriteFile(base+".aux", []byte(`\relax`), 0o600)
		_ = os.WriteFile(base+".pdf", []byte("%PDF-1.5"), 0o600)
		return &manuscript.CommandOutput{Stdout: log}, nil
	}
	return &manuscript.CommandOutput{}, nil
}

func (f *fakeTools) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// testEnv captures output and builds into root/out by default.
func testEnv(t *testing.T, runner manuscript.Runner) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Paths.Output = filepath.Join(t.TempDir(), "out")
	return &Environment{
		Now:    func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) },
		Stdout: &stdout,
		Stderr: &stderr,
		Config: cfg,
		Runner: runner,
	}, &stdout, &stderr
}

// writeManuscript creates a manuscript directory holding files.
func writeManuscript(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "paper")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
