package toolchain

// Notes:
// - scriptedRunner stands in for every external tool. Compiler calls write
//   the files a real engine would leave in the working directory (.log,
//   .aux, .pdf) so the loop's file checks run against real paths.
// - Compiler passes beyond the scripted list repeat the last entry.

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/docxology/go-manuscript/internal/process"
)

const testJob = "_combined_manuscript"

type scriptedRunner struct {
	mu    sync.Mutex
	calls []process.Command
	fn    func(cmd process.Command) (*process.Output, error)
}

func (r *scriptedRunner) Run(_ context.Context, cmd process.Command) (*process.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	if r.fn == nil {
		return &process.Output{}, nil
	}
	return r.fn(cmd)
}

func (r *scriptedRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// pass scripts one compiler invocation.
type pass struct {
	log  string
	pdf  bool // false removes any existing artifact
	exit int
	bcf  bool
}

// newCompilerRunner returns a runner that plays passes for the engine and
// delegates other tools to other (nil = exit 0).
func newCompilerRunner(t *testing.T, engine Engine, passes []pass, other func(process.Command) (*process.Output, error)) *scriptedRunner {
	t.Helper()
	n := 0
	r := &scriptedRunner{}
	r.fn = func(cmd process.Command) (*process.Output, error) {
		if cmd.Name != engine.Binary() {
			if other == nil {
				return &process.Output{}, nil
			}
			return other(cmd)
		}

		p := passes[min(n, len(passes)-1)]
		n++

		write := func(ext, content string) {
			if err := os.WriteFile(filepath.Join(cmd.Dir, testJob+ext), []byte(content), 0o600); err != nil {
				t.Errorf("writing %s: %v", ext, err)
			}
		}
		write(".log", p.log)
		write(".aux", `\relax`)
		if p.bcf {
			write(".bcf", "<bcf/>")
		}
		if p.pdf {
			write(".pdf", "%PDF-1.5")
		} else {
			_ = os.Remove(filepath.Join(cmd.Dir, testJob+".pdf"))
		}
		return &process.Output{Stdout: p.log, ExitCode: p.exit}, nil
	}
	return r
}

func newSandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, testJob+".tex"), []byte(`\documentclass{article}`), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}
