package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/docxology/go-manuscript/internal/hints"
	"github.com/docxology/go-manuscript/internal/process"
	"github.com/docxology/go-manuscript/internal/toolchain"
)

// Tool roles reported by doctor.
const (
	roleConverter    = "converter"
	roleEngine       = "engine"
	roleBibliography = "bibliography"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Tools    []toolInfo `json:"tools"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// toolInfo holds one executable's detection result.
type toolInfo struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Found   bool   `json:"found"`
	Version string `json:"version,omitempty"`
	Problem string `json:"problem,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(ctx context.Context, args []string, env *Environment) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	runner := env.Runner
	if runner == nil {
		runner = process.NewExecRunner()
	}

	result := runDoctor(ctx, runner)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context, runner process.Runner) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}

	checkTools(ctx, runner, result)
	checkEnvironment(result)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkTools probes every executable a build may invoke. Pandoc and at least
// one engine are required; a missing bibliography tool is a warning.
func checkTools(ctx context.Context, runner process.Runner, result *doctorResult) {
	engines := 0
	bibTools := 0

	for _, name := range toolchain.Tools() {
		info := toolInfo{Name: name, Role: toolRole(name)}
		version, err := toolchain.Probe(ctx, runner, name)
		switch {
		case err == nil:
			info.Found = true
			info.Version = version
		case errors.Is(err, toolchain.ErrToolNotFound):
			info.Problem = "not found on PATH"
		default:
			info.Problem = err.Error()
		}
		result.Tools = append(result.Tools, info)

		if !info.Found {
			continue
		}
		switch info.Role {
		case roleEngine:
			engines++
		case roleBibliography:
			bibTools++
		}
	}

	for _, t := range result.Tools {
		if t.Role == roleConverter && !t.Found {
			result.Errors = append(result.Errors, "pandoc not available"+hints.ForToolNotFound(t.Name))
		}
		if t.Name == toolchain.DefaultEngine.Binary() && !t.Found && engines > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("default engine %s not found; pass --engine", t.Name))
		}
	}
	if engines == 0 {
		result.Errors = append(result.Errors,
			"no TeX engine found"+hints.ForToolNotFound(toolchain.DefaultEngine.Binary()))
	}
	if bibTools == 0 {
		result.Warnings = append(result.Warnings,
			"neither bibtex nor biber found; citations will stay unresolved")
	}
}

func toolRole(name string) string {
	if name == toolchain.PandocBinary {
		return roleConverter
	}
	if _, err := toolchain.ParseEngine(name); err == nil {
		return roleEngine
	}
	return roleBibliography
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("MANUSCRIPT_CONTAINER") == "1" {
		return true, "MANUSCRIPT_CONTAINER=1"
	}
	if hints.IsInContainer() {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory is writable; TeX engines write
// font caches and auxiliary files there.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "manuscript-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "manuscript doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Toolchain")
	for _, t := range r.Tools {
		switch {
		case t.Found:
			fmt.Fprintf(w, "  [OK] %s: %s\n", t.Name, t.Version)
		case t.Role == roleConverter:
			fmt.Fprintf(w, "  [ERROR] %s: %s\n", t.Name, t.Problem)
		default:
			fmt.Fprintf(w, "  [WARN] %s: %s\n", t.Name, t.Problem)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	tmp := "[OK] Temp directory: writable"
	if !r.System.TempWritable {
		tmp = "[ERROR] Temp directory: not writable"
	}
	fmt.Fprintf(w, "System\n  %s\n\n", tmp)

	printFindings(w, "Warnings:", "[WARN]", r.Warnings)
	printFindings(w, "Errors:", "[ERROR]", r.Errors)

	status := map[string]string{
		"ready":    "Ready to build",
		"warnings": "Ready with warnings",
		"errors":   "Not ready (see errors above)",
	}[r.Status]
	fmt.Fprintf(w, "Status: %s\n", status)
}

// printFindings prints a titled, tagged list; nothing when items is empty.
func printFindings(w io.Writer, title, tag string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", tag, item)
	}
	fmt.Fprintln(w)
}
