// Package runner orchestrates one check pass: resolve the configuration, run
// the external analyzer, decode its report, apply the suppression rules, and
// hand the survivors to the notification layer.
package runner

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"checkup/internal/conf"
	"checkup/internal/diag"
	"checkup/internal/ignore"
	"checkup/internal/notify"
	"checkup/internal/proc"
)

// Runner runs check passes against one workspace.
type Runner struct {
	// Binary is the external analyzer executable.
	Binary string
	// BaseArgs are inserted before the analysis arguments.
	BaseArgs []string
	// ConfigPath pins the root config file. Empty means discover it in the
	// work directory.
	ConfigPath string

	Registry *conf.Registry
	Notifier notify.Notifier
	Logger   *log.Logger
	Timeout  time.Duration
	Retry    proc.Retry
}

// Result is the outcome of one check pass.
type Result struct {
	RunID string
	// Files holds the filtered diagnostics per file, files with zero
	// remaining diagnostics included.
	Files map[string][]diag.Diagnostic
	// Suppressed counts diagnostics dropped by ignore rules.
	Suppressed int
	// ToolErrors are analyzer-level errors not attached to any file.
	ToolErrors []string
}

// Total returns the number of surviving diagnostics.
func (r *Result) Total() int {
	n := 0
	for _, diags := range r.Files {
		n += len(diags)
	}
	return n
}

// Check runs the analyzer over paths (the whole workspace when empty) and
// returns the filtered result. Config problems degrade to a pass with no
// ignore rules; analyzer launch and exit problems return typed errors.
func (r *Runner) Check(ctx context.Context, workDir string, paths []string) (*Result, error) {
	runID := uuid.New().String()
	cfg := r.resolveConfig(workDir, runID)

	r.status("analysis started")

	args := append([]string{}, r.BaseArgs...)
	args = append(args, "analyse", "--error-format=json", "--no-progress")
	args = append(args, paths...)

	h, err := proc.SpawnWithRetry(ctx, proc.Spec{
		Command: r.Binary,
		Args:    args,
		Dir:     workDir,
		Timeout: r.Timeout,
		Retry:   r.Retry,
	})
	if err != nil {
		r.status("analysis failed")
		return nil, err
	}
	defer h.Close()

	go func() {
		for range h.Stderr() {
			// Tail buffer keeps the content for failure reporting.
		}
	}()

	var out strings.Builder
	for line := range h.Stdout() {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	st := h.Wait()

	report, parseErr := diag.ParseReport(strings.NewReader(out.String()))
	if parseErr != nil {
		// Exit code 1 still carries a valid report (findings present); any
		// other non-zero exit without one is a process failure.
		if st.Code != 0 && st.Code != 1 {
			r.status("analysis failed")
			return nil, &proc.ProcessExitError{Code: st.Code, Stderr: h.StderrTail()}
		}
		r.status("analysis failed")
		return nil, fmt.Errorf("run %s: %w", runID, parseErr)
	}

	result := &Result{
		RunID:      runID,
		Files:      make(map[string][]diag.Diagnostic, len(report.Files)),
		ToolErrors: report.Errors,
	}
	for _, msg := range report.Errors {
		r.logf("run %s: analyzer error: %s", runID, msg)
	}

	// One cloned rule set per pass: quotas decrement across all files of this
	// pass and never leak into the next one.
	rules := cfg.IgnoreErrors.Clone()

	files := make([]string, 0, len(report.Files))
	for file := range report.Files {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		diags := report.Files[file]
		filtered := rules.Filter(diags, file)
		result.Suppressed += len(diags) - len(filtered)
		result.Files[file] = filtered
		if r.Notifier != nil {
			r.Notifier.Diagnostics(file, filtered)
		}
	}

	r.status(fmt.Sprintf("analysis finished: %d issue(s)", result.Total()))
	return result, nil
}

// resolveConfig produces the effective configuration for one pass. Every
// degradation path logs exactly once and falls back to an empty rule set.
func (r *Runner) resolveConfig(workDir, runID string) *conf.Config {
	empty := &conf.Config{
		Parameters:   make(map[string]any),
		IgnoreErrors: &ignore.Set{},
	}

	path := r.ConfigPath
	if path == "" {
		found, err := conf.FindConfig(workDir)
		if err != nil {
			r.logf("run %s: %v, proceeding without ignore rules", runID, err)
			return empty
		}
		path = found
	}

	resolver := &conf.Resolver{Registry: r.Registry, Logger: r.Logger}
	cfg, err := resolver.Resolve(path)
	if err != nil {
		r.logf("run %s: config resolution failed (%v), proceeding without ignore rules", runID, err)
		return empty
	}
	return cfg
}

func (r *Runner) status(text string) {
	if r.Notifier != nil {
		r.Notifier.Status(text)
	}
}

func (r *Runner) logf(format string, args ...any) {
	l := r.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}
