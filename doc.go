// Package manuscript builds a PDF from a manuscript split across ordered
// markdown fragments, using pandoc and a LaTeX engine.
//
// # Quick Start
//
//	b := manuscript.NewBuilder(
//	    manuscript.WithEngine(manuscript.XeLaTeX),
//	    manuscript.WithTimeout(5 * time.Minute),
//	)
//
//	result, err := b.Build(ctx, manuscript.Input{
//	    Name:         "study",
//	    Fragments:    []string{"manuscript/01_intro.md", "manuscript/02_methods.md"},
//	    PreamblePath: "manuscript/preamble.md",
//	    OutputDir:    "output",
//	    Bibliography: "manuscript/references.bib",
//	    Metadata:     &manuscript.Metadata{Title: "Study", Authors: []string{"A", "B"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.ArtifactPath) // output/pdf/study.pdf
//
// # Build Pipeline
//
// A build runs these stages, in order:
//
//  1. Source aggregation: fragments are read as strict UTF-8 and joined with
//     a page break (print) or horizontal rule (screen) between them.
//  2. Preamble extraction: fenced latex blocks from the preamble fragment.
//  3. Title block generation from Metadata.
//  4. Markup translation via pandoc (natbib citations, numbered sections, TOC).
//  5. Figure path rewriting to the prefix seen from the working directory.
//  6. The compilation loop: a first pass, optional bibtex/biber, then
//     additional passes until the log shows no rerun request. At most four
//     compiler invocations are made.
//
// Only translation failure and a compilation that never produced a PDF are
// errors. Missing figures, packages and citations are reported in
// Result.Diagnostics. Bibliography, preamble and title problems degrade to
// warnings.
//
// # Output Layout
//
// Everything is written to <OutputDir>/pdf. The aggregated markdown, the
// translated LaTeX, the compiler log and auxiliary files share the working
// name _combined_manuscript and are kept after the build. The final PDF is
// renamed to <Name>.pdf.
//
// # Parallel Builds
//
// BuildAll compiles several independent projects concurrently. Projects must
// not share an output directory.
package manuscript
