package manuscript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docxology/go-manuscript/internal/fileutil"
	"github.com/docxology/go-manuscript/internal/pipeline"
	"github.com/docxology/go-manuscript/internal/process"
	"github.com/docxology/go-manuscript/internal/toolchain"
)

// Compile-time interface implementation checks.
var (
	_ pipeline.SourceAggregator      = (*pipeline.Aggregator)(nil)
	_ pipeline.AssetRewriter         = (*pipeline.PathRewriter)(nil)
	_ toolchain.MarkupTranslator     = (*toolchain.Translator)(nil)
	_ toolchain.BibliographyResolver = (*toolchain.BibResolver)(nil)
	_ process.Runner                 = (*process.ExecRunner)(nil)
)

// Intermediate file names inside the working directory.
const (
	headerFileName     = WorkingName + "_header.tex"
	beforeBodyFileName = WorkingName + "_before.tex"
)

// Builder runs the manuscript pipeline. It holds no per-build state and is
// safe for concurrent use on distinct output directories.
type Builder struct {
	cfg        builderConfig
	logger     *zap.Logger
	runner     Runner
	translator toolchain.MarkupTranslator
}

// NewBuilder creates a Builder with default configuration.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		cfg: builderConfig{
			timeout:     defaultTimeout,
			engine:      toolchain.DefaultEngine,
			bibTool:     BibTeX,
			biblioStyle: toolchain.DefaultBiblioStyle,
			maxPasses:   toolchain.MaxPasses,
			now:         time.Now,
		},
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.runner == nil {
		b.runner = process.NewExecRunner()
	}
	if b.cfg.now == nil {
		b.cfg.now = time.Now
	}
	if b.translator == nil {
		t := toolchain.NewTranslator(b.runner, b.cfg.timeout, b.logger.Named("pandoc"))
		if b.cfg.pandocBin != "" {
			t.Binary = b.cfg.pandocBin
		}
		b.translator = t
	}

	return b
}

// Build runs every stage for one project. Only translation failure and a
// compilation that never produced a PDF are errors; on compilation failure
// the returned Result is non-nil and carries the diagnostics.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (b *Builder) Build(ctx context.Context, input Input) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if err := validateInput(&input); err != nil {
		return nil, err
	}

	log := b.logger.With(zap.String("project", input.Name))
	workDir := filepath.Join(input.OutputDir, WorkDirName)
	if err := os.MkdirAll(workDir, fileutil.DirPerm); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	if err := removeStaleArtifacts(workDir, input.Name); err != nil {
		return nil, err
	}

	res := &Result{}
	keep := func(path string) { res.Intermediates = append(res.Intermediates, path) }

	// Source aggregation.
	doc, err := pipeline.NewAggregator(input.Target, log).Aggregate(input.Fragments)
	if err != nil {
		return nil, fmt.Errorf("aggregating manuscript: %w", err)
	}
	mdPath := filepath.Join(workDir, WorkingName+".md")
	if err := fileutil.WriteFile(mdPath, doc.Content); err != nil {
		return nil, fmt.Errorf("writing aggregated manuscript: %w", err)
	}
	keep(mdPath)
	log.Debug("manuscript aggregated",
		zap.Int("fragments", len(doc.Fragments)),
		zap.Int("separators", doc.Separators),
		zap.Stringer("target", input.Target))

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Preamble and title block.
	preamble := pipeline.ExtractPreamble(input.PreamblePath)
	title := pipeline.GenerateTitleBlock(toTitleData(input.Metadata), b.cfg.now())
	if input.Metadata != nil && title.IsEmpty() {
		log.Debug("metadata present but no title block generated")
	}

	headerPath, err := writeInjection(workDir, headerFileName, preamble, title.Preamble)
	if err != nil {
		return nil, err
	}
	beforePath, err := writeInjection(workDir, beforeBodyFileName, title.Body)
	if err != nil {
		return nil, err
	}
	for _, p := range []string{headerPath, beforePath} {
		if p != "" {
			keep(p)
		}
	}

	// Markup translation.
	bibForPandoc := ""
	if input.Bibliography != "" {
		if fileutil.FileExists(input.Bibliography) {
			bibForPandoc = input.Bibliography
		} else {
			log.Warn("bibliography database not found", zap.String("path", input.Bibliography))
		}
	}

	texPath := filepath.Join(workDir, WorkingName+".tex")
	err = b.translator.Translate(ctx, toolchain.TranslateRequest{
		Input:          mdPath,
		Output:         texPath,
		SourceDir:      input.SourceDir,
		FiguresDir:     input.FiguresDir,
		HeaderFile:     headerPath,
		BeforeBodyFile: beforePath,
		Bibliography:   bibForPandoc,
		BiblioStyle:    b.cfg.biblioStyle,
		ExtraArgs:      b.cfg.pandocArgs,
	})
	if err != nil {
		return nil, err
	}
	keep(texPath)

	// Figure path rewriting.
	tex, err := os.ReadFile(texPath) // #nosec G304 -- path built from the output directory
	if err != nil {
		return nil, fmt.Errorf("%w: reading translated markup: %w", ErrTranslation, err)
	}
	rewritten, refs := pipeline.NewPathRewriter(input.FiguresDir, workDir, log).Rewrite(string(tex))
	res.Assets = refs
	if rewritten != string(tex) {
		if err := fileutil.WriteFile(texPath, rewritten); err != nil {
			return nil, fmt.Errorf("writing rewritten markup: %w", err)
		}
	}

	// Compilation loop.
	loop := toolchain.NewLoop(b.cfg.engine, b.runner,
		toolchain.WithBibResolver(toolchain.NewBibResolver(b.cfg.bibTool, b.runner, b.cfg.timeout, log.Named(b.cfg.bibTool.String()))),
		toolchain.WithConvergence(b.cfg.convergence),
		toolchain.WithMaxPasses(b.cfg.maxPasses),
		toolchain.WithLoopTimeout(b.cfg.timeout),
		toolchain.WithLoopLogger(log.Named(b.cfg.engine.String())),
	)
	lr, err := loop.Run(ctx, toolchain.Job{
		Dir:          workDir,
		JobName:      WorkingName,
		OutputName:   input.Name,
		Bibliography: input.Bibliography,
	})
	if lr != nil {
		res.Passes = lr.Passes()
		res.State = lr.State
		res.Partial = lr.Partial
		res.Bibliography = lr.Bibliography
		res.Diagnostics = lr.Diagnostics
		res.Warnings = append(res.Warnings, lr.Warnings...)
		res.ArtifactPath = lr.Artifact
	}
	for _, ext := range []string{".log", ".aux", ".bbl", ".blg", ".bcf", ".toc"} {
		if p := filepath.Join(workDir, WorkingName+ext); fileutil.FileExists(p) {
			keep(p)
		}
	}
	if err != nil {
		return res, err
	}

	if missing := countMissing(refs); missing > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d figure(s) not found in %s", missing, input.FiguresDir))
	}
	return res, nil
}

// validateInput checks required fields and fills defaults in place.
func validateInput(in *Input) error {
	if len(in.Fragments) == 0 {
		return ErrNoFragments
	}
	if strings.TrimSpace(in.OutputDir) == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalidInput)
	}
	if in.Name == "" {
		in.Name = DefaultName
	}
	if strings.ContainsAny(in.Name, `/\`) || in.Name == WorkingName {
		return fmt.Errorf("%w: artifact name %q", ErrInvalidInput, in.Name)
	}
	if in.SourceDir == "" {
		in.SourceDir = filepath.Dir(in.Fragments[0])
	}
	if in.FiguresDir == "" {
		in.FiguresDir = filepath.Join(in.OutputDir, FiguresDirName)
	}
	return absolutize(in)
}

// absolutize resolves every path of in against the current directory. The
// tools run inside the working directory, so relative paths would not
// resolve there.
func absolutize(in *Input) error {
	fragments := make([]string, len(in.Fragments))
	for i, f := range in.Fragments {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("%w: fragment %q: %w", ErrInvalidInput, f, err)
		}
		fragments[i] = abs
	}
	in.Fragments = fragments

	for _, p := range []*string{&in.OutputDir, &in.FiguresDir, &in.SourceDir, &in.PreamblePath, &in.Bibliography} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("%w: path %q: %w", ErrInvalidInput, *p, err)
		}
		*p = abs
	}
	return nil
}

// removeStaleArtifacts deletes the PDFs a previous run left behind so that a
// failing stage never leaves an old artifact at the public path.
func removeStaleArtifacts(workDir, name string) error {
	for _, base := range []string{name, WorkingName} {
		if _, err := fileutil.RemoveIfExists(filepath.Join(workDir, base+".pdf")); err != nil {
			return fmt.Errorf("removing stale artifact: %w", err)
		}
	}
	return nil
}

// writeInjection joins the non-empty parts and writes them to name in dir.
// It returns "" without writing when every part is empty.
func writeInjection(dir, name string, parts ...string) (string, error) {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "", nil
	}
	path := filepath.Join(dir, name)
	if err := fileutil.WriteFile(path, strings.Join(kept, "\n\n")+"\n"); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

func toTitleData(m *Metadata) *pipeline.TitleData {
	if m == nil {
		return nil
	}
	return &pipeline.TitleData{
		Title:    m.Title,
		Subtitle: m.Subtitle,
		Authors:  m.Authors,
		Date:     m.Date,
	}
}

func countMissing(refs []AssetRef) int {
	n := 0
	for _, r := range refs {
		if r.Rewritten && !r.Found {
			n++
		}
	}
	return n
}
