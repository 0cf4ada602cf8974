// Package toolchain drives the external tools that turn aggregated markdown
// into a PDF: pandoc for markup translation, a LaTeX engine for
// compilation, and bibtex or biber for citations.
//
// The Compilation Loop is a small state machine:
//
//	INITIAL -> FIRST_PASS -> [BIBLIOGRAPHY] -> ADDITIONAL_PASS(n) -> CONVERGED | FAILED | EXHAUSTED
//
// It never runs the compiler more than MaxPasses times. Convergence is
// decided by a pluggable ConvergenceFunc; the TeX engines share a check for
// rerun requests and undefined references in the log.
//
// All tools run through process.Runner, so tests substitute a scripted
// runner for real binaries.
package toolchain
