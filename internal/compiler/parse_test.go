package compiler

import (
	"testing"

	"crest/internal/diag"
)

func TestParseLineColSeverity(t *testing.T) {
	out := ParseOutput("foo.c:3:5: error: missing semicolon\n", "/tmp/123_foo.c", "/src/foo.crest", 10)
	if len(out) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(out))
	}
	d := out[0]
	if d.Line != 2 || d.Col != 4 {
		t.Errorf("positions not 0-based: line=%d col=%d", d.Line, d.Col)
	}
	if d.Severity != diag.SevError || d.Message != "missing semicolon" {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
	if d.File != "/src/foo.crest" {
		t.Errorf("file not rewritten to original: %q", d.File)
	}
	if d.Origin != diag.OriginCompiler {
		t.Errorf("origin not tagged: %q", d.Origin)
	}
}

func TestParseLineSeverityFallback(t *testing.T) {
	out := ParseOutput("foo.c:7: warning: unused variable 'x'\n", "/tmp/1_foo.c", "foo.crest", 10)
	if len(out) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(out))
	}
	if out[0].Line != 6 || out[0].Col != 0 || out[0].Severity != diag.SevWarning {
		t.Fatalf("unexpected diagnostic: %+v", out[0])
	}
}

func TestParseBareLineNeedsErrorHint(t *testing.T) {
	matched := ParseOutput("foo.c:2: expected ';' after statement\n", "/tmp/1_foo.c", "foo.crest", 10)
	if len(matched) != 1 || matched[0].Severity != diag.SevError {
		t.Fatalf("bare error line not matched: %+v", matched)
	}
	ignored := ParseOutput("foo.c:2: compiling translation unit\n", "/tmp/1_foo.c", "foo.crest", 10)
	if len(ignored) != 0 {
		t.Fatalf("informational bare line matched: %+v", ignored)
	}
}

func TestParseFiltersForeignFiles(t *testing.T) {
	output := "other.c:1:1: error: nope\nfoo.c:1:1: error: yes\n"
	out := ParseOutput(output, "/tmp/1_foo.c", "/src/foo.crest", 10)
	if len(out) != 1 || out[0].Message != "yes" {
		t.Fatalf("foreign file diagnostics leaked: %+v", out)
	}
}

func TestParseTempBasenameAccepted(t *testing.T) {
	out := ParseOutput("/tmp/99_foo.c:4:2: warning: shadow\n", "/tmp/99_foo.c", "/src/foo.crest", 10)
	if len(out) != 1 {
		t.Fatalf("temp file diagnostics dropped: %+v", out)
	}
}

func TestParseStopsAtMax(t *testing.T) {
	output := ""
	for i := 1; i <= 10; i++ {
		output += "foo.c:1:1: error: e\n"
	}
	out := ParseOutput(output, "/tmp/1_foo.c", "foo.crest", 3)
	if len(out) != 3 {
		t.Fatalf("max not enforced: %d", len(out))
	}
}

func TestParseFatalError(t *testing.T) {
	out := ParseOutput("foo.c:1:10: fatal error: 'lib.h' file not found\n", "/tmp/1_foo.c", "foo.crest", 10)
	if len(out) != 1 || out[0].Severity != diag.SevError {
		t.Fatalf("fatal error not parsed: %+v", out)
	}
}

func TestIncludeFlagsSingleTokens(t *testing.T) {
	flags := IncludeFlags([]string{"/a/b c", "/d"})
	if len(flags) != 2 || flags[0] != "-I/a/b c" || flags[1] != "-I/d" {
		t.Fatalf("unexpected flags: %#v", flags)
	}
}
