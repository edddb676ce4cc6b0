package execfind

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, "crestc")
	got, ok := resolve(path, "", false)
	if !ok || got != path {
		t.Fatalf("resolve(%q) = %q, %v", path, got, ok)
	}
}

func TestResolveAbsoluteMissing(t *testing.T) {
	if _, ok := resolve(filepath.Join(t.TempDir(), "nope"), "", false); ok {
		t.Fatalf("missing absolute path resolved")
	}
}

func TestResolveSearchPathOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeExecutable(t, first, "crestc")
	writeExecutable(t, second, "crestc")
	searchPath := first + string(os.PathListSeparator) + second
	got, ok := resolve("crestc", searchPath, false)
	if !ok || got != filepath.Join(first, "crestc") {
		t.Fatalf("resolve picked %q, %v; want first dir", got, ok)
	}
}

func TestResolveSkipsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crestc")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := resolve("crestc", dir, false); ok {
		t.Fatalf("non-executable file resolved on POSIX")
	}
}

func TestResolveIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, dir, "crestc")
	a, okA := resolve("crestc", dir, false)
	b, okB := resolve("crestc", dir, false)
	if okA != okB || a != b {
		t.Fatalf("resolution not idempotent: (%q,%v) vs (%q,%v)", a, okA, b, okB)
	}
}

func TestResolveNotFound(t *testing.T) {
	if _, ok := resolve("definitely-not-here", t.TempDir(), false); ok {
		t.Fatalf("unexpected resolution")
	}
}

func TestCandidateExtensionsWindows(t *testing.T) {
	t.Setenv("PATHEXT", ".COM;.EXE")
	exts := candidateExtensions("crestc", true)
	if len(exts) != 2 || exts[0] != ".com" || exts[1] != ".exe" {
		t.Fatalf("unexpected extensions: %v", exts)
	}
	// an explicit extension suppresses the PATHEXT expansion
	exts = candidateExtensions("crestc.exe", true)
	if len(exts) != 1 || exts[0] != "" {
		t.Fatalf("extensionful command expanded: %v", exts)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got := expandHome("~/bin/crestc")
	want := filepath.Join(home, "bin", "crestc")
	if got != want {
		t.Fatalf("expandHome = %q, want %q", got, want)
	}
	if expandHome("plain") != "plain" {
		t.Fatalf("non-home command rewritten")
	}
}
