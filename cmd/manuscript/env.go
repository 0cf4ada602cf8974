package main

import (
	"io"
	"os"
	"time"

	manuscript "github.com/docxology/go-manuscript"
	"github.com/docxology/go-manuscript/internal/config"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, configuration, and the process runner.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config    // used when neither --config nor MANUSCRIPT_CONFIG is set
	Runner manuscript.Runner // nil = real processes
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: config.DefaultConfig(),
	}
}
