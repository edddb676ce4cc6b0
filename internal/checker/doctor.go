package checker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"crest/internal/analyzer"
	"crest/internal/compiler"
	"crest/internal/config"
)

// ProbeStatus classifies a single doctor finding.
type ProbeStatus int

const (
	ProbeOK ProbeStatus = iota
	ProbeWarn
	ProbeFail
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbeOK:
		return "ok"
	case ProbeWarn:
		return "warn"
	default:
		return "fail"
	}
}

// Probe is one environment check with a human-readable verdict.
type Probe struct {
	Name   string
	Status ProbeStatus
	Detail string
}

// DoctorReport collects every probe; the run as a whole never fails,
// the caller only reads the verdicts.
type DoctorReport struct {
	Probes []Probe
}

// Healthy reports whether at least one diagnostic source is usable.
func (r *DoctorReport) Healthy() bool {
	for _, p := range r.Probes {
		if (p.Name == "compiler" || p.Name == "analyzer") && p.Status == ProbeOK {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(name string, status ProbeStatus, format string, args ...any) {
	r.Probes = append(r.Probes, Probe{Name: name, Status: status, Detail: fmt.Sprintf(format, args...)})
}

// Doctor probes the environment the way a session would use it: tool
// resolution, a real analyzer handshake, and both config layers.
func Doctor(ctx context.Context, settings config.Settings) *DoctorReport {
	report := &DoctorReport{}

	probeCompiler(ctx, report, settings)
	probeAnalyzer(ctx, report, settings)
	probeProjectConfig(report)
	probeUserConfig(report)
	probeHome(report)

	return report
}

func probeCompiler(ctx context.Context, report *DoctorReport, settings config.Settings) {
	if !settings.Compiler.Enabled {
		report.add("compiler", ProbeWarn, "disabled in settings")
		return
	}
	path, ok := compiler.Locate(settings)
	if !ok {
		report.add("compiler", ProbeFail, "%q not found on PATH or under CREST_HOME", settings.Compiler.Path)
		return
	}
	report.add("compiler", ProbeOK, "%s", path)
	probeCompilerRun(ctx, report, path)
}

// probeCompilerRun syntax-checks a trivial program through the resolved
// binary so a broken installation surfaces here instead of mid-session.
func probeCompilerRun(ctx context.Context, report *DoctorReport, path string) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("crest_doctor_%d.c", os.Getpid()))
	if err := os.WriteFile(tmp, []byte("int main(void) { return 0; }\n"), 0o600); err != nil {
		report.add("compiler run", ProbeWarn, "cannot write probe source: %v", err)
		return
	}
	defer os.Remove(tmp)

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, path, "-Wall", "-fsyntax-only", tmp)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		report.add("compiler run", ProbeFail, "trivial program rejected: %s", firstLine(detail))
		return
	}
	report.add("compiler run", ProbeOK, "trivial program accepted")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func probeAnalyzer(ctx context.Context, report *DoctorReport, settings config.Settings) {
	if !settings.Analyzer.Enabled || settings.Analyzer.Mode == config.ModeDisabled {
		report.add("analyzer", ProbeWarn, "disabled in settings")
		return
	}
	path, args, err := analyzer.BuildCommand(settings)
	if err != nil {
		report.add("analyzer", ProbeFail, "%v", err)
		return
	}
	report.add("analyzer", ProbeOK, "%s", path)

	client := analyzer.New(analyzer.Options{
		Path:          path,
		Args:          args,
		FallbackFlags: settings.Analyzer.FallbackFlags,
	})
	defer client.Stop()

	handshakeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	start := time.Now()
	if err := client.Start(handshakeCtx); err != nil {
		report.add("analyzer handshake", ProbeFail, "%v", err)
		return
	}
	report.add("analyzer handshake", ProbeOK, "initialized in %s", time.Since(start).Round(time.Millisecond))
}

func probeProjectConfig(report *DoctorReport) {
	cwd, err := os.Getwd()
	if err != nil {
		report.add("project config", ProbeWarn, "cannot determine working directory: %v", err)
		return
	}
	path, ok, err := config.FindProjectFile(cwd)
	if err != nil {
		report.add("project config", ProbeWarn, "%v", err)
		return
	}
	if !ok {
		report.add("project config", ProbeWarn, "no %s found above %s", config.ProjectFileName, cwd)
		return
	}
	if _, err := config.LoadProjectFile(path); err != nil {
		report.add("project config", ProbeFail, "%s: %v", path, err)
		return
	}
	report.add("project config", ProbeOK, "%s", path)
}

func probeUserConfig(report *DoctorReport) {
	path, err := config.UserConfigPath()
	if err != nil {
		report.add("user config", ProbeWarn, "%v", err)
		return
	}
	if _, statErr := os.Stat(path); statErr != nil {
		report.add("user config", ProbeWarn, "no file at %s", path)
		return
	}
	if _, err := config.LoadUserOverlayFrom(path); err != nil {
		report.add("user config", ProbeFail, "%s: %v", path, err)
		return
	}
	report.add("user config", ProbeOK, "%s", path)
}

func probeHome(report *DoctorReport) {
	home := os.Getenv(compiler.HomeEnv)
	if home == "" {
		report.add("environment", ProbeWarn, "%s is not set", compiler.HomeEnv)
		return
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		report.add("environment", ProbeFail, "%s points at %s, which is not a directory", compiler.HomeEnv, home)
		return
	}
	report.add("environment", ProbeOK, "%s=%s", compiler.HomeEnv, home)
}
