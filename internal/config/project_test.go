package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindProjectFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, ProjectFileName)
	if err := os.WriteFile(want, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok, err := FindProjectFile(nested)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != want {
		t.Fatalf("FindProjectFile = %q, %v; want %q", got, ok, want)
	}
}

func TestFindProjectFileStopsAtRepoBoundary(t *testing.T) {
	root := t.TempDir()
	// config above the repo boundary must stay invisible
	if err := os.WriteFile(filepath.Join(root, ProjectFileName), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	repo := filepath.Join(root, "repo")
	nested := filepath.Join(repo, "src")
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	_, ok, err := FindProjectFile(nested)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("walk escaped the repository boundary")
	}
}

func TestLoadProjectFileResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	body := `{
		"crestHome": "sdk",
		"compiler": {"path": "tools/crestc", "includePaths": ["include", "/abs"]},
		"analyzer": {"compileCommandsDir": "build"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	overlay, err := LoadProjectFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := *overlay.CrestHome; got != filepath.Join(dir, "sdk") {
		t.Errorf("crestHome not anchored: %q", got)
	}
	if got := *overlay.Compiler.Path; got != filepath.Join(dir, "tools", "crestc") {
		t.Errorf("compiler path not anchored: %q", got)
	}
	if got := overlay.Compiler.IncludePaths[0]; got != filepath.Join(dir, "include") {
		t.Errorf("include path not anchored: %q", got)
	}
	if got := overlay.Compiler.IncludePaths[1]; got != "/abs" {
		t.Errorf("absolute include path rewritten: %q", got)
	}
	if got := *overlay.Analyzer.CompileCommandsDir; got != filepath.Join(dir, "build") {
		t.Errorf("compile commands dir not anchored: %q", got)
	}
}

func TestLoadProjectFileBareCommandPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	if err := os.WriteFile(path, []byte(`{"compiler": {"path": "crestc"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	overlay, err := LoadProjectFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := *overlay.Compiler.Path; got != "crestc" {
		t.Fatalf("bare command anchored to project dir: %q", got)
	}
}

func TestLoadProjectFileParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProjectFile(path); err == nil {
		t.Fatalf("malformed project file accepted")
	}
}

func TestLoadUserOverlayMissingFile(t *testing.T) {
	overlay, err := LoadUserOverlayFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("missing user config should not error: %v", err)
	}
	if overlay.Compiler != nil || overlay.Analyzer != nil {
		t.Fatalf("missing user config produced a non-empty overlay")
	}
}

func TestLoadUserOverlayTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "trace = true\n\n[compiler]\nmax_problems = 42\n\n[analyzer]\nmode = \"proxy\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	overlay, err := LoadUserOverlayFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if overlay.Trace == nil || !*overlay.Trace {
		t.Errorf("trace not decoded")
	}
	if overlay.Compiler == nil || overlay.Compiler.MaxProblems == nil || *overlay.Compiler.MaxProblems != 42 {
		t.Errorf("compiler.max_problems not decoded: %+v", overlay.Compiler)
	}
	if overlay.Analyzer == nil || overlay.Analyzer.Mode == nil || *overlay.Analyzer.Mode != "proxy" {
		t.Errorf("analyzer.mode not decoded: %+v", overlay.Analyzer)
	}
}
