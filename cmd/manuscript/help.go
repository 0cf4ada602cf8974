package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: manuscript <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build      Build one or more manuscripts into PDF")
	fmt.Fprintln(w, "  doctor     Check pandoc, TeX engines and bibliography tools")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'manuscript help <command>' for details on a specific command.")
}

// printBuildUsage prints usage for the build command.
func printBuildUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: manuscript build [dir...] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Aggregate the markdown fragments of each manuscript directory, translate")
	fmt.Fprintln(w, "them with pandoc and compile with a TeX engine until cross-references settle.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  dir      Manuscript directory (default: paths.manuscript from config)")
	fmt.Fprintln(w, "           Several directories build in parallel into <output>/<dir name>.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Layout:")
	fmt.Fprintln(w, "  -o, --output <path>        Output root; the compiler works in <output>/pdf")
	fmt.Fprintln(w, "      --figures <path>       Figures directory (default <output>/figures)")
	fmt.Fprintln(w, "      --preamble <path>      Preamble fragment (default <dir>/preamble.md)")
	fmt.Fprintln(w, "      --metadata <path>      Title page YAML (default <dir>/config.yaml)")
	fmt.Fprintln(w, "  -b, --bibliography <path>  BibTeX database (default <dir>/references.bib)")
	fmt.Fprintln(w, "  -n, --name <s>             Output PDF name without extension")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Toolchain:")
	fmt.Fprintln(w, "  -e, --engine <s>           TeX engine: pdflatex, xelatex, lualatex")
	fmt.Fprintln(w, "      --target <s>           Fragment separator: print (page break), screen (rule)")
	fmt.Fprintln(w, "      --bib-tool <s>         Bibliography tool: bibtex, biber")
	fmt.Fprintln(w, "      --biblio-style <s>     BibTeX style (default plainnat)")
	fmt.Fprintln(w, "      --pandoc <path>        pandoc executable")
	fmt.Fprintln(w, "      --pandoc-arg <s>       Extra pandoc argument (repeatable)")
	fmt.Fprintln(w, "  -t, --timeout <d>          Per-tool timeout (e.g. 90s, 5m)")
	fmt.Fprintln(w, "      --max-passes <n>       Compiler pass limit, 1-4")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "General:")
	fmt.Fprintln(w, "  -c, --config <name>        Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>          Projects built in parallel (0 = auto)")
	fmt.Fprintln(w, "  -q, --quiet                Only print errors")
	fmt.Fprintln(w, "  -v, --verbose              Log tool invocations and pass details")
	fmt.Fprintln(w, "  -h, --help                 Show this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  MANUSCRIPT_CONFIG, MANUSCRIPT_OUTPUT_DIR, MANUSCRIPT_FIGURES_DIR,")
	fmt.Fprintln(w, "  MANUSCRIPT_ENGINE, MANUSCRIPT_TARGET, MANUSCRIPT_BIB_TOOL, MANUSCRIPT_PANDOC,")
	fmt.Fprintln(w, "  MANUSCRIPT_TIMEOUT, MANUSCRIPT_WORKERS")
	fmt.Fprintln(w, "  Precedence: flags > environment > config file > defaults.")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: manuscript doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Probe pandoc, the TeX engines and the bibliography tools, and check")
	fmt.Fprintln(w, "that the temp directory is writable.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json    Machine-readable output")
}

// runHelp prints help for a command, or the main usage.
func runHelp(args []string, w io.Writer) {
	if len(args) == 0 {
		printUsage(w)
		return
	}
	switch args[0] {
	case "build":
		printBuildUsage(w)
	case "doctor":
		printDoctorUsage(w)
	case "version":
		fmt.Fprintln(w, "Usage: manuscript version")
	default:
		fmt.Fprintf(w, "unknown command %q\n\n", args[0])
		printUsage(w)
	}
}
