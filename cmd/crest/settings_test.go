package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"crest/internal/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func newFlagHarness(t *testing.T) (*cobra.Command, *toolFlags) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	flags := &toolFlags{}
	flags.register(cmd)
	return cmd, flags
}

func TestOverlayEmptyWhenNothingSet(t *testing.T) {
	cmd, flags := newFlagHarness(t)
	o := flags.overlay(cmd)
	if o.Compiler != nil || o.Analyzer != nil || o.CrestHome != nil || o.Trace != nil {
		t.Fatalf("untouched flags leaked into the overlay: %+v", o)
	}
}

func TestOverlayCarriesOnlyChangedFlags(t *testing.T) {
	cmd, flags := newFlagHarness(t)
	if err := cmd.Flags().Set("compiler", "/opt/crestc"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("no-analyzer", "true"); err != nil {
		t.Fatal(err)
	}
	o := flags.overlay(cmd)
	if o.Compiler == nil || o.Compiler.Path == nil || *o.Compiler.Path != "/opt/crestc" {
		t.Fatalf("compiler path not carried: %+v", o.Compiler)
	}
	if o.Compiler.Enabled != nil {
		t.Fatal("compiler enabled set without the flag")
	}
	if o.Analyzer == nil || o.Analyzer.Enabled == nil || *o.Analyzer.Enabled {
		t.Fatalf("no-analyzer not inverted into enabled=false: %+v", o.Analyzer)
	}
}

func TestCheckSettingsMalformedDiscoveredProjectWarnsAndContinues(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "crest.json"), []byte("{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cmd, flags := newFlagHarness(t)
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	if err := cmd.Flags().Set("analyzer-diagnostics", "none"); err != nil {
		t.Fatal(err)
	}

	settings, err := checkSettings(cmd, flags, "")
	if err != nil {
		t.Fatalf("broken discovered project config must not be fatal: %v", err)
	}
	if !strings.Contains(stderr.String(), "project config ignored") {
		t.Fatalf("no warning emitted, stderr: %q", stderr.String())
	}
	if settings.Analyzer.DiagnosticsMode != config.DiagnosticsNone {
		t.Fatalf("flag layer lost after the skipped project file: %v", settings.Analyzer.DiagnosticsMode)
	}
}

func TestCheckSettingsExplicitProjectFileMustLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "crest.json")
	if err := os.WriteFile(path, []byte("{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd, flags := newFlagHarness(t)
	if _, err := checkSettings(cmd, flags, path); err == nil {
		t.Fatal("explicitly requested project config should fail loudly")
	}
}

func TestOverlayWinsOverDefaults(t *testing.T) {
	cmd, flags := newFlagHarness(t)
	if err := cmd.Flags().Set("analyzer-diagnostics", "none"); err != nil {
		t.Fatal(err)
	}
	merged := config.Merge(config.Default(), flags.overlay(cmd))
	if merged.Analyzer.DiagnosticsMode != config.DiagnosticsNone {
		t.Fatalf("flag did not win: %v", merged.Analyzer.DiagnosticsMode)
	}
}
