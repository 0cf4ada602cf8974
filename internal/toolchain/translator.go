package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docxology/go-manuscript/internal/process"
)

// PandocBinary is the markup translator executable.
const PandocBinary = "pandoc"

// DefaultBiblioStyle is the natbib style requested when none is configured.
const DefaultBiblioStyle = "plainnat"

// TranslateRequest describes one markdown to LaTeX translation.
type TranslateRequest struct {
	Input          string // aggregated markdown
	Output         string // LaTeX destination
	SourceDir      string // manuscript directory, searched for resources
	FiguresDir     string // figures directory, searched for resources
	HeaderFile     string // included before \begin{document}; optional
	BeforeBodyFile string // included after \begin{document}; optional
	Bibliography   string // .bib path; optional
	BiblioStyle    string
	ExtraArgs      []string
}

// MarkupTranslator defines the contract for markdown to LaTeX translation.
type MarkupTranslator interface {
	Translate(ctx context.Context, req TranslateRequest) error
}

// Translator invokes pandoc.
type Translator struct {
	Runner  process.Runner
	Binary  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewTranslator creates a Translator. A nil runner uses a real process
// runner and a nil logger disables logging.
func NewTranslator(runner process.Runner, timeout time.Duration, logger *zap.Logger) *Translator {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{Runner: runner, Binary: PandocBinary, Timeout: timeout, Logger: logger}
}

// Args builds the pandoc command line. Citations are emitted as natbib
// commands and resolved later by the bibliography tool.
func (t *Translator) Args(req TranslateRequest) []string {
	args := []string{
		req.Input,
		"-f", "markdown",
		"-t", "latex",
		"--standalone",
		"--number-sections",
		"--toc",
		"--natbib",
	}

	var resources []string
	for _, dir := range []string{req.SourceDir, req.FiguresDir} {
		if dir != "" {
			resources = append(resources, dir)
		}
	}
	if len(resources) > 0 {
		args = append(args, "--resource-path="+strings.Join(resources, string(os.PathListSeparator)))
	}

	if req.HeaderFile != "" {
		args = append(args, "-H", req.HeaderFile)
	}
	if req.BeforeBodyFile != "" {
		args = append(args, "-B", req.BeforeBodyFile)
	}

	if req.Bibliography != "" {
		style := req.BiblioStyle
		if style == "" {
			style = DefaultBiblioStyle
		}
		args = append(args,
			"-M", "bibliography="+BareName(req.Bibliography),
			"-V", "biblio-style="+style,
		)
	}

	args = append(args, req.ExtraArgs...)
	return append(args, "-o", req.Output)
}

// Translate runs pandoc. A non-zero exit fails with both streams attached.
func (t *Translator) Translate(ctx context.Context, req TranslateRequest) error {
	if req.Input == "" || req.Output == "" {
		return fmt.Errorf("%w: input and output paths are required", ErrTranslation)
	}

	binary := t.Binary
	if binary == "" {
		binary = PandocBinary
	}
	args := t.Args(req)
	t.Logger.Debug("translating markup", zap.String("tool", binary), zap.Strings("args", args))

	out, err := t.Runner.Run(ctx, process.Command{
		Name:    binary,
		Args:    args,
		Dir:     filepath.Dir(req.Output),
		Timeout: t.Timeout,
	})
	if err != nil {
		err = classify(binary, err)
		if out != nil && errors.Is(err, ErrToolTimeout) {
			return fmt.Errorf("%w: %w: %w", ErrTranslation, err, newToolError(binary, out.ExitCode, out.Stderr, out.Stdout))
		}
		return fmt.Errorf("%w: %w", ErrTranslation, err)
	}

	if out.ExitCode != 0 {
		return fmt.Errorf("%w: %w", ErrTranslation, newToolError(binary, out.ExitCode, out.Stderr, out.Stdout))
	}

	t.Logger.Debug("markup translated", zap.String("output", req.Output), zap.Duration("elapsed", out.Duration))
	return nil
}

// BareName returns the file name of path without directory or extension,
// the form LaTeX's \bibliography expects.
func BareName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
