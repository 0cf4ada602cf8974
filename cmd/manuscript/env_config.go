package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docxology/go-manuscript/internal/config"
)

// envPrefix marks the variables this CLI reads.
const envPrefix = "MANUSCRIPT_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string        // MANUSCRIPT_CONFIG: config file path
	OutputDir  string        // MANUSCRIPT_OUTPUT_DIR: output root
	FiguresDir string        // MANUSCRIPT_FIGURES_DIR: figures directory
	Engine     string        // MANUSCRIPT_ENGINE: pdflatex, xelatex, lualatex
	Target     string        // MANUSCRIPT_TARGET: print, screen
	BibTool    string        // MANUSCRIPT_BIB_TOOL: bibtex, biber
	Pandoc     string        // MANUSCRIPT_PANDOC: pandoc executable
	Timeout    time.Duration // MANUSCRIPT_TIMEOUT: per-tool timeout
	Workers    int           // MANUSCRIPT_WORKERS: parallel project builds
}

// knownEnvVars lists valid MANUSCRIPT_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"MANUSCRIPT_CONFIG":      true,
	"MANUSCRIPT_OUTPUT_DIR":  true,
	"MANUSCRIPT_FIGURES_DIR": true,
	"MANUSCRIPT_ENGINE":      true,
	"MANUSCRIPT_TARGET":      true,
	"MANUSCRIPT_BIB_TOOL":    true,
	"MANUSCRIPT_PANDOC":      true,
	"MANUSCRIPT_TIMEOUT":     true,
	"MANUSCRIPT_WORKERS":     true,
	"MANUSCRIPT_CONTAINER":   true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
// Malformed durations and counts are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("MANUSCRIPT_CONFIG"),
		OutputDir:  os.Getenv("MANUSCRIPT_OUTPUT_DIR"),
		FiguresDir: os.Getenv("MANUSCRIPT_FIGURES_DIR"),
		Engine:     os.Getenv("MANUSCRIPT_ENGINE"),
		Target:     os.Getenv("MANUSCRIPT_TARGET"),
		BibTool:    os.Getenv("MANUSCRIPT_BIB_TOOL"),
		Pandoc:     os.Getenv("MANUSCRIPT_PANDOC"),
	}

	if timeout := os.Getenv("MANUSCRIPT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if workers := os.Getenv("MANUSCRIPT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars prints a warning for each unrecognized MANUSCRIPT_* variable.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name, _, _ := strings.Cut(env, "=")
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig copies set environment values over cfg.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied afterwards by mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.OutputDir != "" {
		cfg.Paths.Output = env.OutputDir
	}
	if env.FiguresDir != "" {
		cfg.Paths.Figures = env.FiguresDir
	}
	if env.Engine != "" {
		cfg.Build.Engine = env.Engine
	}
	if env.Target != "" {
		cfg.Build.Target = env.Target
	}
	if env.BibTool != "" {
		cfg.Bibliography.Tool = env.BibTool
	}
	if env.Pandoc != "" {
		cfg.Build.Pandoc = env.Pandoc
	}
	if env.Timeout > 0 {
		cfg.Build.Timeout = env.Timeout.String()
	}
}
