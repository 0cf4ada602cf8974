package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/docxology/go-manuscript/internal/process"
)

const (
	cleanLog = "Package: rerunfilecheck 2022-07-10 v1.10 Rerun checks for auxiliary files (HO)\n" +
		"Output written on _combined_manuscript.pdf (3 pages).\n"
	rerunLog     = "LaTeX Warning: Label(s) may have changed. Rerun to get cross-references right.\n"
	undefinedLog = "LaTeX Warning: Citation `smith2020' on page 1 undefined on input line 12.\n" +
		"LaTeX Warning: There were undefined references.\n"
	fatalLog = "! LaTeX Error: File `missing.sty' not found.\n! Emergency stop.\n" +
		"No pages of output.\n"
)

// ---------------------------------------------------------------------------
// TestLoop_Run - State transitions
// ---------------------------------------------------------------------------

func TestLoop_Run_SinglePassWithoutBibliography(t *testing.T) {
	t.Parallel()

	dir := newSandbox(t)
	runner := newCompilerRunner(t, XeLaTeX, []pass{{log: cleanLog, pdf: true}}, nil)
	bib := &recordingResolver{}

	res, err := NewLoop(XeLaTeX, runner, WithBibResolver(bib)).Run(context.Background(), Job{
		Dir:        dir,
		JobName:    testJob,
		OutputName: "paper",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.State != StateConverged || res.Passes() != 1 {
		t.Errorf("state = %s, passes = %d; want converged after 1 pass", res.State, res.Passes())
	}
	if bib.calls != 0 || res.Bibliography.Performed {
		t.Error("bibliography stage should be skipped without a database")
	}
	want := filepath.Join(dir, "paper.pdf")
	if res.Artifact != want {
		t.Errorf("Artifact = %q, want %q", res.Artifact, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("public artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, testJob+".log")); err != nil {
		t.Errorf("intermediate log should be retained: %v", err)
	}
	if res.Partial || len(res.Warnings) != 0 {
		t.Errorf("Partial = %v, Warnings = %v", res.Partial, res.Warnings)
	}
}

func TestLoop_Run_NeverConverges(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, MaxPasses, 100} {
		dir := newSandbox(t)
		runner := newCompilerRunner(t, PDFLaTeX, []pass{{log: rerunLog, pdf: true}}, nil)

		res, err := NewLoop(PDFLaTeX, runner, WithMaxPasses(limit)).Run(context.Background(), Job{Dir: dir, JobName: testJob})
		if err != nil {
			t.Fatalf("limit %d: Run() error = %v", limit, err)
		}
		if got := runner.count("pdflatex"); got != MaxPasses {
			t.Errorf("limit %d: compiler invoked %d times, want %d", limit, got, MaxPasses)
		}
		if res.State != StateExhausted {
			t.Errorf("limit %d: state = %s, want exhausted", limit, res.State)
		}
		if len(res.Warnings) == 0 {
			t.Errorf("limit %d: exhausted run should carry a warning", limit)
		}
		if res.Artifact != filepath.Join(dir, testJob+".pdf") {
			t.Errorf("limit %d: Artifact = %q", limit, res.Artifact)
		}
	}
}

func TestLoop_Run_LowerPassLimit(t *testing.T) {
	t.Parallel()

	runner := newCompilerRunner(t, XeLaTeX, []pass{{log: undefinedLog, pdf: true}}, nil)

	res, err := NewLoop(XeLaTeX, runner, WithMaxPasses(2)).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passes() != 2 || res.State != StateExhausted {
		t.Errorf("passes = %d, state = %s; want 2, exhausted", res.Passes(), res.State)
	}
}

func TestLoop_Run_ConvergesOnSecondPass(t *testing.T) {
	t.Parallel()

	runner := newCompilerRunner(t, XeLaTeX, []pass{
		{log: rerunLog, pdf: true},
		{log: cleanLog, pdf: true},
	}, nil)

	res, err := NewLoop(XeLaTeX, runner).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != StateConverged || res.Passes() != 2 {
		t.Errorf("state = %s, passes = %d; want converged, 2", res.State, res.Passes())
	}
	if !res.Attempts[1].Converged || res.Attempts[0].Converged {
		t.Errorf("attempts = %+v", res.Attempts)
	}
}

func TestLoop_Run_FirstPassFatal(t *testing.T) {
	t.Parallel()

	dir := newSandbox(t)
	runner := newCompilerRunner(t, XeLaTeX, []pass{{log: fatalLog, exit: 1}}, nil)

	res, err := NewLoop(XeLaTeX, runner).Run(context.Background(), Job{Dir: dir, JobName: testJob})
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("Run() error = %v, want ErrCompilation", err)
	}

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error %v does not carry *ToolError", err)
	}
	if toolErr.Tool != "xelatex" || toolErr.ExitCode != 1 || !strings.Contains(toolErr.Output, "Emergency stop") {
		t.Errorf("ToolError = %+v", toolErr)
	}

	if res == nil || res.State != StateFailed || res.Passes() != 1 {
		t.Fatalf("result = %+v, want failed after 1 pass", res)
	}
	if len(res.Diagnostics.MissingPackages) != 1 || res.Diagnostics.MissingPackages[0] != "missing" {
		t.Errorf("MissingPackages = %v", res.Diagnostics.MissingPackages)
	}
}

func TestLoop_Run_LaterPassFatalKeepsArtifact(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	runner := newCompilerRunner(t, XeLaTeX, []pass{
		{log: rerunLog, pdf: true},
		{log: fatalLog, pdf: true, exit: 1},
	}, nil)

	res, err := NewLoop(XeLaTeX, runner, WithLoopLogger(zap.New(core))).Run(context.Background(), Job{
		Dir:        newSandbox(t),
		JobName:    testJob,
		OutputName: "paper",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != StateConverged || !res.Partial || res.Passes() != 2 {
		t.Errorf("state = %s, partial = %v, passes = %d", res.State, res.Partial, res.Passes())
	}
	if logs.FilterMessageSnippet("aborted").Len() != 1 {
		t.Errorf("want a partial-success warning, got %d log entries", logs.Len())
	}
}

func TestLoop_Run_LaterPassFatalWithoutArtifact(t *testing.T) {
	t.Parallel()

	runner := newCompilerRunner(t, XeLaTeX, []pass{
		{log: rerunLog, pdf: true},
		{log: fatalLog, pdf: false, exit: 1},
	}, nil)

	res, err := NewLoop(XeLaTeX, runner).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("Run() error = %v, want ErrCompilation", err)
	}
	if res.State != StateFailed || res.Passes() != 2 {
		t.Errorf("state = %s, passes = %d", res.State, res.Passes())
	}
}

func TestLoop_Run_ExhaustedWithoutArtifact(t *testing.T) {
	t.Parallel()

	runner := newCompilerRunner(t, LuaLaTeX, []pass{{log: rerunLog}}, nil)

	res, err := NewLoop(LuaLaTeX, runner).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("Run() error = %v, want ErrCompilation", err)
	}
	if res.State != StateFailed || res.Passes() != MaxPasses {
		t.Errorf("state = %s, passes = %d", res.State, res.Passes())
	}
}

func TestLoop_Run_RemovesStaleArtifacts(t *testing.T) {
	t.Parallel()

	dir := newSandbox(t)
	for _, name := range []string{testJob + ".pdf", "paper.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("stale"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	// A first pass that aborts without writing a PDF must not be mistaken
	// for one that produced the stale file.
	runner := &scriptedRunner{fn: func(cmd process.Command) (*process.Output, error) {
		return &process.Output{ExitCode: 1, Stdout: "! Emergency stop."}, nil
	}}

	_, err := NewLoop(XeLaTeX, runner).Run(context.Background(), Job{Dir: dir, JobName: testJob, OutputName: "paper"})
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("Run() error = %v, want ErrCompilation", err)
	}
	for _, name := range []string{testJob + ".pdf", "paper.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed, stat err = %v", name, err)
		}
	}
}

// ---------------------------------------------------------------------------
// TestLoop_Run_Bibliography - Optional BIBLIOGRAPHY stage
// ---------------------------------------------------------------------------

type recordingResolver struct {
	calls   int
	outcome BibOutcome
}

func (r *recordingResolver) Resolve(_ context.Context, _, _, _ string) BibOutcome {
	r.calls++
	return r.outcome
}

func TestLoop_Run_MissingDatabaseDoesNotBlock(t *testing.T) {
	t.Parallel()

	dir := newSandbox(t)
	runner := newCompilerRunner(t, XeLaTeX, []pass{{log: cleanLog, pdf: true}}, nil)
	bib := NewBibResolver(BibTeX, runner, 0, nil)

	res, err := NewLoop(XeLaTeX, runner, WithBibResolver(bib)).Run(context.Background(), Job{
		Dir:          dir,
		JobName:      testJob,
		Bibliography: filepath.Join(dir, "absent.bib"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Bibliography.Performed {
		t.Error("bibliography should not be performed without a database")
	}
	if runner.count("bibtex") != 0 {
		t.Error("bibtex should not run without a database")
	}
	if !res.State.Terminal() || res.State == StateFailed {
		t.Errorf("state = %s, want converged or exhausted", res.State)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", res.Warnings)
	}
}

func TestLoop_Run_BibliographyForcesAnotherPass(t *testing.T) {
	t.Parallel()

	dir := newSandbox(t)
	bibPath := filepath.Join(t.TempDir(), "references.bib")
	if err := os.WriteFile(bibPath, []byte("@article{smith2020,}"), 0o600); err != nil {
		t.Fatal(err)
	}

	runner := newCompilerRunner(t, XeLaTeX, []pass{
		{log: undefinedLog, pdf: true},
		{log: rerunLog, pdf: true},
		{log: cleanLog, pdf: true},
	}, nil)
	bib := NewBibResolver(BibTeX, runner, 0, nil)

	res, err := NewLoop(XeLaTeX, runner, WithBibResolver(bib)).Run(context.Background(), Job{
		Dir:          dir,
		JobName:      testJob,
		Bibliography: bibPath,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Bibliography.Performed {
		t.Fatalf("Bibliography = %+v, want performed", res.Bibliography)
	}
	if res.Passes() != 3 || res.State != StateConverged {
		t.Errorf("passes = %d, state = %s; want 3, converged", res.Passes(), res.State)
	}

	// Order: engine, bibtex, engine, engine.
	if runner.calls[1].Name != "bibtex" || runner.calls[1].Dir != dir {
		t.Errorf("second call = %+v, want bibtex in sandbox", runner.calls[1])
	}
	if _, err := os.Stat(filepath.Join(dir, "references.bib")); err != nil {
		t.Errorf("database should be copied into the sandbox: %v", err)
	}
}

func TestLoop_Run_BibliographyAfterConvergedFirstPass(t *testing.T) {
	t.Parallel()

	bib := &recordingResolver{outcome: BibOutcome{Performed: true, Tool: "bibtex"}}
	runner := newCompilerRunner(t, XeLaTeX, []pass{{log: cleanLog, pdf: true}}, nil)

	res, err := NewLoop(XeLaTeX, runner, WithBibResolver(bib)).Run(context.Background(), Job{
		Dir:          newSandbox(t),
		JobName:      testJob,
		Bibliography: "refs.bib",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if bib.calls != 1 || res.Passes() != 2 {
		t.Errorf("resolver calls = %d, passes = %d; want 1, 2", bib.calls, res.Passes())
	}
}

// ---------------------------------------------------------------------------
// TestLoop_Run_Errors - Tool failures and job validation
// ---------------------------------------------------------------------------

func TestLoop_Run_Timeout(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{fn: func(cmd process.Command) (*process.Output, error) {
		return &process.Output{ExitCode: -1}, process.ErrTimeout
	}}

	res, err := NewLoop(XeLaTeX, runner).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if !errors.Is(err, ErrCompilation) || !errors.Is(err, ErrToolTimeout) {
		t.Fatalf("Run() error = %v, want ErrCompilation and ErrToolTimeout", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %s, want failed", res.State)
	}
}

func TestLoop_Run_EngineNotFound(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{fn: func(cmd process.Command) (*process.Output, error) {
		return nil, process.ErrNotFound
	}}

	_, err := NewLoop(XeLaTeX, runner).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Run() error = %v, want ErrToolNotFound", err)
	}
}

func TestLoop_Run_InvalidJob(t *testing.T) {
	t.Parallel()

	_, err := NewLoop(XeLaTeX, &scriptedRunner{}).Run(context.Background(), Job{})
	if !errors.Is(err, ErrInvalidJob) {
		t.Errorf("Run() error = %v, want ErrInvalidJob", err)
	}
}

func TestLoop_Run_CustomConvergence(t *testing.T) {
	t.Parallel()

	calls := 0
	converge := func(log string) bool {
		calls++
		return calls >= 3
	}
	runner := newCompilerRunner(t, XeLaTeX, []pass{{log: cleanLog, pdf: true}}, nil)

	res, err := NewLoop(XeLaTeX, runner, WithConvergence(converge)).Run(context.Background(), Job{Dir: newSandbox(t), JobName: testJob})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passes() != 3 || res.State != StateConverged {
		t.Errorf("passes = %d, state = %s; want 3, converged", res.Passes(), res.State)
	}
}

func TestLoop_Run_CompilerArgs(t *testing.T) {
	t.Parallel()

	dir := newSandbox(t)
	runner := newCompilerRunner(t, PDFLaTeX, []pass{{log: cleanLog, pdf: true}}, nil)

	if _, err := NewLoop(PDFLaTeX, runner, WithLoopTimeout(42)).Run(context.Background(), Job{Dir: dir, JobName: testJob}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := runner.calls[0]
	if got.Dir != dir || got.Timeout != 42 || got.Args[len(got.Args)-1] != testJob+".tex" {
		t.Errorf("command = %+v", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	if StateAdditionalPass.String() != "additional-pass" || State(99).String() != "State(99)" {
		t.Errorf("unexpected state names: %s, %s", StateAdditionalPass, State(99))
	}
	for _, s := range []State{StateConverged, StateFailed, StateExhausted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StateFirstPass.Terminal() {
		t.Error("first-pass should not be terminal")
	}
}
