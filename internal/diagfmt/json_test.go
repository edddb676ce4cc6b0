package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"crest/internal/diag"
)

func TestJSONDocumentShape(t *testing.T) {
	var buf bytes.Buffer
	err := JSON(&buf, []diag.Diagnostic{
		{File: "/src/a.crest", Line: 1, Col: 2, EndLine: 1, EndCol: 6, Severity: diag.SevError, Message: "bad", Origin: diag.OriginCompiler},
		{File: "/src/a.crest", Line: 4, Col: 0, Severity: diag.SevWarning, Message: "meh", Origin: diag.OriginLint},
		{File: "/src/a.crest", Line: 5, Col: 0, Severity: diag.SevHint, Message: "hm", Origin: diag.OriginLint},
	}, JSONOpts{PathMode: PathModeAbsolute})
	if err != nil {
		t.Fatal(err)
	}
	var out Output
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Diagnostics) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(out.Diagnostics))
	}
	if out.Errors != 1 || out.Warnings != 1 {
		t.Fatalf("counts wrong: errors=%d warnings=%d", out.Errors, out.Warnings)
	}
	first := out.Diagnostics[0]
	if first.Line != 1 || first.Col != 2 || first.Severity != "error" || first.Origin != "crestc" {
		t.Fatalf("first diagnostic malformed: %+v", first)
	}
}

func TestJSONEmptyListStaysArray(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, nil, JSONOpts{}); err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["diagnostics"]) != "[]" {
		t.Fatalf("diagnostics not an empty array: %s", raw["diagnostics"])
	}
}
