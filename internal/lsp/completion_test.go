package lsp

import (
	"encoding/json"
	"testing"

	"crest/internal/config"
	"crest/internal/lang"
)

func completionAt(t *testing.T, h *serverHarness, uri string, line, character int) completionList {
	t.Helper()
	resp := h.request("textDocument/completion", map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"position":     map[string]any{"line": line, "character": character},
	})
	var list completionList
	if err := json.Unmarshal(resp.Result, &list); err != nil {
		t.Fatalf("decode completion result: %v", err)
	}
	return list
}

func labels(list completionList) map[string]bool {
	out := make(map[string]bool, len(list.Items))
	for _, item := range list.Items {
		out[item.Label] = true
	}
	return out
}

func TestCompletionIncludeContextHeadersOnly(t *testing.T) {
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledToolsOverlay(),
		Compile:    compileStub(),
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "#include <\n", 1)

	list := completionAt(t, h, uri, 0, 10)
	if len(list.Items) != len(lang.Headers()) {
		t.Fatalf("expected %d header items, got %d", len(lang.Headers()), len(list.Items))
	}
	got := labels(list)
	if !got["crest/math.h"] {
		t.Fatalf("header set missing crest/math.h: %v", got)
	}
	if got["kernel"] || got["vec3"] {
		t.Fatalf("keywords leaked into include completion: %v", got)
	}
}

func TestCompletionMemberContextAccessorsOnly(t *testing.T) {
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledToolsOverlay(),
		Compile:    compileStub(),
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "float f = pos.\n", 1)

	list := completionAt(t, h, uri, 0, 14)
	got := labels(list)
	for _, want := range []string{"x", "y", "z", "w"} {
		if !got[want] {
			t.Fatalf("accessor %q missing: %v", want, got)
		}
	}
	if got["normalize"] || got["kernel"] {
		t.Fatalf("general items leaked into member completion: %v", got)
	}
}

func TestCompletionGeneralStaticOnlyWithoutAnalyzer(t *testing.T) {
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledToolsOverlay(),
		Compile:    compileStub(),
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "\n", 1)

	list := completionAt(t, h, uri, 0, 0)
	got := labels(list)
	for _, want := range []string{"kernel", "vec3", "normalize", "CREST_PI"} {
		if !got[want] {
			t.Fatalf("static item %q missing: %v", want, got)
		}
	}
}

func TestCompletionAugmentMergesAnalyzerFirst(t *testing.T) {
	factory := &sessionFactory{
		handler: func(method string, params any) (json.RawMessage, error) {
			if method != "textDocument/completion" {
				return json.RawMessage("null"), nil
			}
			return json.RawMessage(`{"isIncomplete":false,"items":[
				{"label":"my_local_var","kind":6},
				{"label":"kernel","kind":14,"detail":"from analyzer"}
			]}`), nil
		},
	}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("augment"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "\n", 1)
	h.waitPublish(uri, nil)
	session, _ := factory.last()
	waitFor(t, session.Ready)

	list := completionAt(t, h, uri, 0, 0)
	if len(list.Items) == 0 {
		t.Fatalf("empty completion list")
	}
	if list.Items[0].Label != "my_local_var" {
		t.Fatalf("analyzer items must come first, got %q", list.Items[0].Label)
	}
	count := 0
	for _, item := range list.Items {
		if item.Label == "kernel" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate label not collapsed, %d copies of kernel", count)
	}
	got := labels(list)
	if !got["vec3"] {
		t.Fatalf("static items missing from augment merge: %v", got)
	}
}

func TestCompletionProxyAnalyzerOnly(t *testing.T) {
	factory := &sessionFactory{
		handler: func(method string, params any) (json.RawMessage, error) {
			return json.RawMessage(`[{"label":"only_analyzer","kind":6}]`), nil
		},
	}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("proxy"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "\n", 1)
	h.waitPublish(uri, nil)
	session, _ := factory.last()
	waitFor(t, session.Ready)

	list := completionAt(t, h, uri, 0, 0)
	got := labels(list)
	if !got["only_analyzer"] {
		t.Fatalf("analyzer result missing in proxy mode: %v", got)
	}
	if got["kernel"] {
		t.Fatalf("static items must not be merged in proxy mode: %v", got)
	}
}

func TestCompletionFallsBackWhenAnalyzerNotReady(t *testing.T) {
	// BuildCommand fails for a nonexistent path, so no session exists and
	// general completion falls back to the static tables.
	path := "/definitely/not/here/clangd"
	enabled := true
	mode := "augment"
	h := newHarness(t, ServerOptions{
		Defaults: config.Default(),
		CLIOverlay: config.Overlay{
			Compiler: &config.CompilerOverlay{Enabled: new(bool)},
			Analyzer: &config.AnalyzerOverlay{Enabled: &enabled, Mode: &mode, Path: &path},
		},
		Compile: compileStub(),
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "\n", 1)

	list := completionAt(t, h, uri, 0, 0)
	if !labels(list)["vec3"] {
		t.Fatalf("static fallback missing: %v", labels(list))
	}
}
