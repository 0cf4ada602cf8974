package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	manuscript "github.com/docxology/go-manuscript"
	"github.com/docxology/go-manuscript/internal/config"
	"github.com/docxology/go-manuscript/internal/fileutil"
)

// Conventional file names inside a manuscript directory.
const (
	defaultPreambleName     = "preamble.md"
	defaultMetadataName     = "config.yaml"
	defaultBibliographyName = "references.bib"
)

// project is one manuscript directory and where it builds.
type project struct {
	dir    string
	output string
}

// runBuild builds every project named on the command line, or the
// configured manuscript directory when none is given.
func runBuild(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseBuildFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	warnUnknownEnvVars(env.Stderr)
	envCfg := loadEnvConfig()

	cfg, err := resolveConfig(flags, envCfg, env)
	if err != nil {
		return err
	}

	logger := newLogger(env.Stderr, flags.common.quiet, flags.common.verbose)
	defer func() { _ = logger.Sync() }()

	builder, err := newBuilder(cfg, flags.tools.pandocArgs, env, logger)
	if err != nil {
		return err
	}

	projects := resolveProjects(positional, cfg)
	inputs := make([]manuscript.Input, 0, len(projects))
	for _, p := range projects {
		in, err := buildInput(p, cfg, logger)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	workers := flags.workers
	if workers == 0 {
		workers = envCfg.Workers
	}

	outcomes, err := builder.BuildAll(ctx, inputs, workers)
	if err != nil {
		return err
	}

	return printOutcomes(outcomes, flags.common, env)
}

// resolveConfig loads the config file, then applies environment variables
// and flags in increasing order of precedence.
func resolveConfig(flags *buildFlags, envCfg *envConfig, env *Environment) (*config.Config, error) {
	var cfg *config.Config

	path := flags.common.config
	if path == "" {
		path = envCfg.ConfigPath
	}

	switch {
	case path != "":
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	case env.Config != nil:
		copied := *env.Config
		cfg = &copied
	default:
		cfg = config.DefaultConfig()
	}

	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFlags copies explicitly set flags into cfg (CLI wins).
func mergeFlags(f *buildFlags, cfg *config.Config) {
	set := f.changed
	if set == nil {
		set = func(string) bool { return false }
	}

	if set("name") {
		cfg.Project.Name = f.name
	}
	if set("metadata") {
		cfg.Project.Metadata = f.paths.metadata
	}
	if set("output") {
		cfg.Paths.Output = f.paths.output
	}
	if set("figures") {
		cfg.Paths.Figures = f.paths.figures
	}
	if set("preamble") {
		cfg.Paths.Preamble = f.paths.preamble
	}
	if set("bibliography") {
		cfg.Bibliography.Database = f.paths.bibliography
	}
	if set("engine") {
		cfg.Build.Engine = f.tools.engine
	}
	if set("target") {
		cfg.Build.Target = f.tools.target
	}
	if set("bib-tool") {
		cfg.Bibliography.Tool = f.tools.bibTool
	}
	if set("biblio-style") {
		cfg.Bibliography.Style = f.tools.biblioStyle
	}
	if set("pandoc") {
		cfg.Build.Pandoc = f.tools.pandoc
	}
	if set("timeout") {
		cfg.Build.Timeout = f.tools.timeout.String()
	}
	if set("max-passes") {
		cfg.Build.MaxPasses = f.tools.maxPasses
	}
}

// newBuilder translates the validated config into builder options.
func newBuilder(cfg *config.Config, pandocArgs []string, env *Environment, logger *zap.Logger) (*manuscript.Builder, error) {
	engine, err := manuscript.ParseEngine(cfg.Build.Engine)
	if err != nil {
		return nil, err
	}
	bibTool, err := manuscript.ParseBibTool(cfg.Bibliography.Tool)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Build.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	opts := []manuscript.Option{
		manuscript.WithEngine(engine),
		manuscript.WithBibTool(bibTool),
		manuscript.WithLogger(logger),
	}
	if timeout > 0 {
		opts = append(opts, manuscript.WithTimeout(timeout))
	}
	if cfg.Build.MaxPasses > 0 {
		opts = append(opts, manuscript.WithMaxPasses(cfg.Build.MaxPasses))
	}
	if cfg.Bibliography.Style != "" {
		opts = append(opts, manuscript.WithBiblioStyle(cfg.Bibliography.Style))
	}
	if cfg.Build.Pandoc != "" {
		opts = append(opts, manuscript.WithPandocBinary(cfg.Build.Pandoc))
	}
	if len(pandocArgs) > 0 {
		opts = append(opts, manuscript.WithPandocArgs(pandocArgs...))
	}
	if env.Now != nil {
		opts = append(opts, manuscript.WithNow(env.Now))
	}
	if env.Runner != nil {
		opts = append(opts, manuscript.WithRunner(env.Runner))
	}

	return manuscript.NewBuilder(opts...), nil
}

// resolveProjects maps manuscript directories to output roots. A single
// project builds into the configured output root; several projects each
// get <output>/<directory name>.
func resolveProjects(dirs []string, cfg *config.Config) []project {
	if len(dirs) == 0 {
		dirs = []string{cfg.Paths.Manuscript}
	}
	if len(dirs) == 1 {
		return []project{{dir: dirs[0], output: cfg.Paths.Output}}
	}

	projects := make([]project, len(dirs))
	for i, d := range dirs {
		projects[i] = project{
			dir:    d,
			output: filepath.Join(cfg.Paths.Output, filepath.Base(filepath.Clean(d))),
		}
	}
	return projects
}

// buildInput discovers fragments and companion files for one project.
// Companion paths set in the config are shared by every project; unset ones
// are looked up inside the manuscript directory.
func buildInput(p project, cfg *config.Config, logger *zap.Logger) (manuscript.Input, error) {
	target, err := manuscript.ParseTarget(cfg.Build.Target)
	if err != nil {
		return manuscript.Input{}, err
	}

	preamble := filepath.Join(p.dir, defaultPreambleName)
	if cfg.Paths.Preamble != "" {
		preamble = cfg.Paths.Preamble
	}

	fragments, err := discoverFragments(p.dir, preamble)
	if err != nil {
		return manuscript.Input{}, err
	}

	metaPath := filepath.Join(p.dir, defaultMetadataName)
	if cfg.Project.Metadata != "" {
		metaPath = cfg.Project.Metadata
	}

	bib := cfg.Bibliography.Database
	if bib == "" {
		if candidate := filepath.Join(p.dir, defaultBibliographyName); fileutil.FileExists(candidate) {
			bib = candidate
		}
	}

	return manuscript.Input{
		Name:         cfg.Project.Name,
		Fragments:    fragments,
		PreamblePath: preamble,
		SourceDir:    p.dir,
		FiguresDir:   cfg.Paths.Figures,
		OutputDir:    p.output,
		Bibliography: bib,
		Metadata:     loadMetadata(metaPath, logger),
		Target:       target,
	}, nil
}

// discoverFragments returns the markdown files of dir in lexical order.
// The preamble fragment and names starting with "." or "_" are skipped.
func discoverFragments(dir, preamble string) ([]string, error) {
	if !fileutil.DirExists(dir) {
		return nil, fmt.Errorf("manuscript directory %s: %w", dir, os.ErrNotExist)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading manuscript directory: %w", err)
	}

	preambleAbs, _ := filepath.Abs(preamble)

	var fragments []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isMarkdown(name) || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		path := filepath.Join(dir, name)
		if abs, err := filepath.Abs(path); err == nil && abs == preambleAbs {
			continue
		}
		fragments = append(fragments, path)
	}

	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w in %s", manuscript.ErrNoFragments, dir)
	}

	slices.Sort(fragments)
	return fragments, nil
}

// isMarkdown checks for a .md or .markdown extension.
func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// loadMetadata degrades to nil (no title block) on any failure. A missing
// file is silent; anything else is logged.
func loadMetadata(path string, logger *zap.Logger) *manuscript.Metadata {
	if !fileutil.FileExists(path) {
		return nil
	}
	meta, err := config.LoadMetadata(path)
	if err != nil {
		logger.Warn("ignoring title page metadata", zap.String("path", path), zap.Error(err))
		return nil
	}
	return &manuscript.Metadata{
		Title:    meta.Paper.Title,
		Subtitle: meta.Paper.Subtitle,
		Authors:  meta.AuthorNames(),
		Date:     meta.Paper.Date,
	}
}
