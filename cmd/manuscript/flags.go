package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	manuscript "github.com/docxology/go-manuscript"
)

// Sentinel errors for CLI operations.
var (
	ErrUsage              = errors.New("invalid usage")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// pathFlags override the project layout.
type pathFlags struct {
	output       string
	figures      string
	preamble     string
	metadata     string
	bibliography string
}

// toolFlags select and tune the external toolchain.
type toolFlags struct {
	engine      string
	target      string
	bibTool     string
	biblioStyle string
	pandoc      string
	pandocArgs  []string
	timeout     time.Duration
	maxPasses   int
}

// buildFlags holds every flag of the build command.
type buildFlags struct {
	common  commonFlags
	paths   pathFlags
	tools   toolFlags
	name    string
	workers int

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

// addCommonFlags adds flags shared across commands to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "print tool invocations and pass details")
}

// addPathFlags adds project layout flags to a FlagSet.
func addPathFlags(fs *flag.FlagSet, f *pathFlags) {
	fs.StringVarP(&f.output, "output", "o", "", "output root (the compiler works in <output>/pdf)")
	fs.StringVar(&f.figures, "figures", "", "figures directory")
	fs.StringVar(&f.preamble, "preamble", "", "preamble fragment")
	fs.StringVar(&f.metadata, "metadata", "", "title page metadata YAML")
	fs.StringVarP(&f.bibliography, "bibliography", "b", "", "BibTeX database")
}

// addToolFlags adds toolchain flags to a FlagSet.
func addToolFlags(fs *flag.FlagSet, f *toolFlags) {
	fs.StringVarP(&f.engine, "engine", "e", "", "TeX engine: pdflatex, xelatex, lualatex")
	fs.StringVar(&f.target, "target", "", "separator style: print, screen")
	fs.StringVar(&f.bibTool, "bib-tool", "", "bibliography tool: bibtex, biber")
	fs.StringVar(&f.biblioStyle, "biblio-style", "", "BibTeX style (e.g. plainnat)")
	fs.StringVar(&f.pandoc, "pandoc", "", "pandoc executable")
	fs.StringArrayVar(&f.pandocArgs, "pandoc-arg", nil, "extra pandoc argument (repeatable)")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-tool timeout (e.g. 90s, 5m)")
	fs.IntVar(&f.maxPasses, "max-passes", 0, "compiler pass limit (1-4)")
}

// parseBuildFlags parses build command flags and returns positional args.
// A --help request is reported as flag.ErrHelp after usage is printed to w.
func parseBuildFlags(args []string, w io.Writer) (*buildFlags, []string, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(w)
	f := &buildFlags{}

	fs.StringVarP(&f.name, "name", "n", "", "output PDF name without extension")
	fs.IntVarP(&f.workers, "workers", "w", 0, "projects built in parallel (0 = auto)")

	addCommonFlags(fs, &f.common)
	addPathFlags(fs, &f.paths)
	addToolFlags(fs, &f.tools)

	fs.Usage = func() { printBuildUsage(w) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	f.changed = fs.Changed
	return f, fs.Args(), nil
}

// validateWorkers rejects negative or oversized worker counts.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > manuscript.MaxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, manuscript.MaxWorkers)
	}
	return nil
}
