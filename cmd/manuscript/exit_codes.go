package main

import (
	"errors"
	"os"

	manuscript "github.com/docxology/go-manuscript"
	"github.com/docxology/go-manuscript/internal/config"
)

// Exit codes for the manuscript CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess   = 0 // Successful build
	ExitGeneral   = 1 // General/unexpected error
	ExitUsage     = 2 // Invalid flags, config, or input
	ExitIO        = 3 // File not found, permission denied
	ExitToolchain = 4 // pandoc, TeX engine, or bibliography tool failure
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Toolchain errors (exit 4)
	if errors.Is(err, manuscript.ErrToolNotFound) ||
		errors.Is(err, manuscript.ErrToolTimeout) ||
		errors.Is(err, manuscript.ErrTranslation) ||
		errors.Is(err, manuscript.ErrCompilation) {
		return ExitToolchain
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, manuscript.ErrInvalidEngine) ||
		errors.Is(err, manuscript.ErrInvalidTarget) ||
		errors.Is(err, manuscript.ErrInvalidBibTool) ||
		errors.Is(err, manuscript.ErrInvalidInput) ||
		errors.Is(err, manuscript.ErrInvalidEncoding) ||
		errors.Is(err, manuscript.ErrEmptyDocument) {
		return ExitUsage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, manuscript.ErrNoFragments) {
		return ExitIO
	}

	return ExitGeneral
}
