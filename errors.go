package manuscript

import (
	"errors"

	"github.com/docxology/go-manuscript/internal/pipeline"
	"github.com/docxology/go-manuscript/internal/toolchain"
)

// Sentinel errors for library operations.
var (
	// Hard failures.
	ErrTranslation = toolchain.ErrTranslation
	ErrCompilation = toolchain.ErrCompilation

	// Source errors.
	ErrNoFragments     = pipeline.ErrNoFragments
	ErrInvalidEncoding = pipeline.ErrInvalidEncoding
	ErrEmptyDocument   = pipeline.ErrEmptyDocument

	// Toolchain errors.
	ErrToolNotFound = toolchain.ErrToolNotFound
	ErrToolTimeout  = toolchain.ErrToolTimeout

	// Validation errors.
	ErrInvalidEngine  = toolchain.ErrInvalidEngine
	ErrInvalidTarget  = pipeline.ErrInvalidTarget
	ErrInvalidBibTool = toolchain.ErrInvalidBibTool
	ErrInvalidInput   = errors.New("invalid build input")
)

// ToolError names the failing tool, its exit code and a trimmed tail of its
// output. Retrieve it with errors.As.
type ToolError = toolchain.ToolError

// FragmentError identifies the fragment that could not be aggregated.
type FragmentError = pipeline.FragmentError

// MissingToolError names an executable that is not on PATH. It matches
// ErrToolNotFound with errors.Is.
type MissingToolError = toolchain.MissingToolError
