// Package pipeline implements the text stages that prepare a manuscript for
// the external toolchain:
//   - Source aggregation (ordered fragments, strict UTF-8, separators)
//   - Preamble extraction (fenced LaTeX blocks from a dedicated fragment)
//   - Title block generation (preamble-scope and body-scope LaTeX)
//   - Figure path rewriting in translated LaTeX (canonical prefix, NFC)
//
// Invoking pandoc and the LaTeX engines is handled by internal/toolchain.
// Stages here are pure with respect to the toolchain: they read files and
// transform strings, and degrade instead of failing wherever a stage is
// optional.
package pipeline
