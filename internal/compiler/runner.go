package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"crest/internal/config"
	"crest/internal/diag"
)

// DefaultTimeout bounds one crestc run.
const DefaultTimeout = 30 * time.Second

// tempExt is the extension crestc expects; .crest sources are materialized
// under it.
const tempExt = ".c"

// Runner spawns one-shot crestc processes against materialized temp files and
// parses their textual output. Failures never propagate: the runner degrades
// to an empty result (or a single advisory diagnostic when the compiler is
// missing or cannot be started) and reports details through Logf.
type Runner struct {
	Timeout    time.Duration
	ScratchDir string
	Logf       func(format string, args ...any)
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) scratchDir() string {
	if r.ScratchDir != "" {
		return r.ScratchDir
	}
	return os.TempDir()
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

// Run compiles sourceText as if it were the document at docPath and returns
// the resulting diagnostics. An empty list means either a clean compile or a
// degraded run; callers cannot tell the difference and must not need to.
func (r *Runner) Run(ctx context.Context, docPath, sourceText string, settings config.Settings) []diag.Diagnostic {
	if !settings.Compiler.Enabled {
		return nil
	}
	compilerPath, resolved := Locate(settings)

	tempFile, err := r.materialize(docPath, sourceText)
	if err != nil {
		r.logf("crestc: failed to materialize temp file: %v", err)
		return nil
	}
	defer os.Remove(tempFile)

	args := []string{"-Wall", "-fsyntax-only"}
	args = append(args, IncludeFlags(IncludeDirs(docPath, settings))...)
	args = append(args, tempFile)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, compilerPath, args...)
	cmd.Dir = filepath.Dir(tempFile)
	if home := settings.CrestHome; home != "" {
		cmd.Env = append(os.Environ(), HomeEnv+"="+home)
	}
	output, err := cmd.CombinedOutput()

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		r.logf("crestc: run timed out after %s", r.timeout())
		return nil
	case err != nil && isSpawnFailure(err):
		if resolved {
			r.logf("crestc: failed to spawn %s: %v", compilerPath, err)
			return []diag.Diagnostic{spawnFailedDiagnostic(docPath, compilerPath)}
		}
		return []diag.Diagnostic{notFoundDiagnostic(docPath, settings.Compiler.Path)}
	}
	// A non-zero exit is the normal outcome for a file with errors; the
	// diagnostics are in the output either way.
	return ParseOutput(string(output), tempFile, docPath, settings.Compiler.MaxProblems)
}

// materialize writes sourceText to a uniquely named temp file carrying the
// compiler's expected extension.
func (r *Runner) materialize(docPath, sourceText string) (string, error) {
	base := filepath.Base(docPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), base, tempExt)
	path := filepath.Join(r.scratchDir(), name)
	if err := os.WriteFile(path, []byte(sourceText), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func isSpawnFailure(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}

// spawnFailedDiagnostic covers the resolved-but-unrunnable case, e.g. the
// execute bit lost between resolution and exec, or a corrupt binary.
func spawnFailedDiagnostic(docPath, compilerPath string) diag.Diagnostic {
	return diag.Diagnostic{
		File:     docPath,
		Severity: diag.SevWarning,
		Message:  fmt.Sprintf("crestc at %q could not be started; compile diagnostics are unavailable", compilerPath),
		Origin:   diag.OriginCompiler,
	}
}

func notFoundDiagnostic(docPath, configuredPath string) diag.Diagnostic {
	if configuredPath == "" {
		configuredPath = CompilerName
	}
	return diag.Diagnostic{
		File:     docPath,
		Severity: diag.SevWarning,
		Message:  fmt.Sprintf("crestc compiler not found (configured path: %q); compile diagnostics are unavailable", configuredPath),
		Origin:   diag.OriginCompiler,
	}
}
