package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"crest/internal/config"
	"crest/internal/diag"
)

func TestInitializeCapabilitiesWithAnalyzer(t *testing.T) {
	factory := &sessionFactory{}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("augment"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	resp := h.initialize("")
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode initialize result: %v", err)
	}
	if !result.Capabilities.HoverProvider || result.Capabilities.CompletionProvider == nil {
		t.Fatalf("local providers missing: %+v", result.Capabilities)
	}
	if !result.Capabilities.DefinitionProvider || !result.Capabilities.ReferencesProvider {
		t.Fatalf("delegated providers should be advertised with a live analyzer")
	}
	if result.Capabilities.SemanticTokensProvider != nil {
		t.Fatalf("semantic tokens must not be advertised outside proxy mode")
	}
}

func TestInitializeCapabilitiesAnalyzerDisabled(t *testing.T) {
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledToolsOverlay(),
		Compile:    compileStub(),
	})
	resp := h.initialize("")
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode initialize result: %v", err)
	}
	if result.Capabilities.DefinitionProvider || result.Capabilities.DocumentSymbolProvider {
		t.Fatalf("delegated providers advertised without an analyzer: %+v", result.Capabilities)
	}
	if !result.Capabilities.HoverProvider {
		t.Fatalf("hover is local and must survive a disabled analyzer")
	}
}

func TestInitializeSemanticTokensProxyOnly(t *testing.T) {
	factory := &sessionFactory{}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("proxy"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	resp := h.initialize("")
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode initialize result: %v", err)
	}
	if result.Capabilities.SemanticTokensProvider == nil {
		t.Fatalf("proxy mode must forward the semantic tokens capability")
	}
}

func TestOpenPublishesLintAndCompilerDiagnostics(t *testing.T) {
	compilerDiag := diag.Diagnostic{
		Line: 0, Col: 4, Severity: diag.SevError,
		Message: "missing semicolon", Origin: diag.OriginCompiler,
	}
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledAnalyzerOverlay(),
		Compile:    compileStub(compilerDiag),
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "int x = 1\n", 1)

	params := h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return len(p.Diagnostics) >= 2
	})
	expectSources(t, params, string(diag.OriginCompiler), string(diag.OriginLint))
}

func TestStaleCompilerResultSuppressed(t *testing.T) {
	release := make(chan struct{})
	compile := func(ctx context.Context, docPath, text string, settings config.Settings) []diag.Diagnostic {
		if strings.Contains(text, "v1") {
			<-release
			return []diag.Diagnostic{{
				File: docPath, Line: 0, Severity: diag.SevError,
				Message: "from-v1", Origin: diag.OriginCompiler,
			}}
		}
		return []diag.Diagnostic{{
			File: docPath, Line: 0, Severity: diag.SevError,
			Message: "from-v2", Origin: diag.OriginCompiler,
		}}
	}
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledAnalyzerOverlay(),
		Compile:    compile,
		Debounce:   5 * time.Millisecond,
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "// v1\n", 1)
	h.changeDoc(uri, 2, "// v2\n")

	h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return hasMessage(p, "from-v2")
	})
	close(release)

	// The v1 result finishes after v2 was published; its write must be
	// discarded, so no later publish may resurrect it.
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case m, ok := <-h.msgs:
			if !ok {
				return
			}
			if m.Method != "textDocument/publishDiagnostics" {
				continue
			}
			var p publishDiagnosticsParams
			if json.Unmarshal(m.Params, &p) != nil {
				continue
			}
			if hasMessage(p, "from-v1") {
				t.Fatalf("stale compiler result was published: %s", describePublish(p))
			}
		case <-deadline:
			return
		}
	}
}

func TestAnalyzerDiagnosticsMergedAndDeduped(t *testing.T) {
	factory := &sessionFactory{}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("augment"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "int ok = 1;\n", 1)
	h.waitPublish(uri, nil)

	session, opts := factory.last()
	if session == nil {
		t.Fatalf("no analyzer session was created")
	}
	if !session.notified("textDocument/didOpen") {
		t.Fatalf("didOpen was not forwarded to the analyzer")
	}
	path := uriToPath(uri)
	same := diag.Diagnostic{
		File: path, Line: 0, Col: 0, Severity: diag.SevError,
		Message: "bad thing", Origin: diag.OriginAnalyzer,
	}
	opts.OnDiagnostics(uri, []diag.Diagnostic{same, same})

	params := h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return hasMessage(p, "bad thing")
	})
	count := 0
	for _, d := range params.Diagnostics {
		if d.Message == "bad thing" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("identical diagnostics not collapsed, got %d copies", count)
	}
}

func TestTruncationPrefersAnalyzerDiagnostics(t *testing.T) {
	overlay := analyzerEnabledOverlay("augment")
	one := 1
	overlay.Compiler = &config.CompilerOverlay{MaxProblems: &one}
	compilerDiag := diag.Diagnostic{
		Line: 0, Severity: diag.SevError, Message: "compiler finding", Origin: diag.OriginCompiler,
	}
	factory := &sessionFactory{}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  overlay,
		Compile:     compileStub(compilerDiag),
		NewAnalyzer: factory.new,
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "int ok = 1;\n", 1)
	h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return hasMessage(p, "compiler finding")
	})

	session, opts := factory.last()
	if session == nil {
		t.Fatalf("no analyzer session was created")
	}
	opts.OnDiagnostics(uri, []diag.Diagnostic{{
		File: uriToPath(uri), Line: 0, Severity: diag.SevError,
		Message: "analyzer finding", Origin: diag.OriginAnalyzer,
	}})

	params := h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return hasMessage(p, "analyzer finding")
	})
	if len(params.Diagnostics) != 1 {
		t.Fatalf("cap of one not enforced: %s", describePublish(params))
	}
	if hasMessage(params, "compiler finding") {
		t.Fatalf("truncation kept the local finding over the analyzer one: %s", describePublish(params))
	}
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	compilerDiag := diag.Diagnostic{
		Line: 0, Severity: diag.SevError, Message: "boom", Origin: diag.OriginCompiler,
	}
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledAnalyzerOverlay(),
		Compile:    compileStub(compilerDiag),
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "int x = 1;\n", 1)
	h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return hasMessage(p, "boom")
	})

	h.notify("textDocument/didClose", map[string]any{
		"textDocument": map[string]any{"uri": uri},
	})
	params := h.waitPublish(uri, func(p publishDiagnosticsParams) bool {
		return len(p.Diagnostics) == 0
	})
	if len(params.Diagnostics) != 0 {
		t.Fatalf("close did not clear diagnostics")
	}
}

func TestShutdownThenExit(t *testing.T) {
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledToolsOverlay(),
		Compile:    compileStub(),
	})
	h.initialize("")
	h.request("shutdown", nil)
	h.notify("exit", nil)
	select {
	case err := <-h.done:
		if !errors.Is(err, ErrExit) {
			t.Fatalf("Run = %v, want ErrExit", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not exit")
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	h := newHarness(t, ServerOptions{
		Defaults:   config.Default(),
		CLIOverlay: disabledToolsOverlay(),
		Compile:    compileStub(),
	})
	h.initialize("")
	h.notify("exit", nil)
	select {
	case err := <-h.done:
		if !errors.Is(err, ErrExitWithoutShutdown) {
			t.Fatalf("Run = %v, want ErrExitWithoutShutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not exit")
	}
}

func TestConfigurationPushRestartsAnalyzer(t *testing.T) {
	factory := &sessionFactory{}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("augment"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	h.initialize("")
	uri := testDocURI(t, "main.crest")
	h.openDoc(uri, "int x = 1;\n", 1)
	h.waitPublish(uri, nil)
	if factory.count() != 1 {
		t.Fatalf("expected 1 session after initialized, got %d", factory.count())
	}
	first, _ := factory.last()

	// The push changes the analyzer fingerprint (new args), so the session
	// must be rebuilt and open documents replayed into it.
	h.notify("workspace/didChangeConfiguration", map[string]any{
		"settings": map[string]any{
			"crest": map[string]any{
				"analyzer": map[string]any{"args": []string{"--log=verbose"}},
			},
		},
	})
	waitFor(t, func() bool { return factory.count() == 2 })
	second, _ := factory.last()
	waitFor(t, func() bool {
		first.mu.Lock()
		defer first.mu.Unlock()
		return first.stopped
	})
	waitFor(t, func() bool { return second.notified("textDocument/didOpen") })
}

func TestConfigurationPushWithoutFingerprintChangeKeepsSession(t *testing.T) {
	factory := &sessionFactory{}
	h := newHarness(t, ServerOptions{
		Defaults:    config.Default(),
		CLIOverlay:  analyzerEnabledOverlay("augment"),
		Compile:     compileStub(),
		NewAnalyzer: factory.new,
	})
	h.initialize("")
	h.notify("workspace/didChangeConfiguration", map[string]any{
		"settings": map[string]any{
			"crest": map[string]any{"runOnType": false},
		},
	})
	// Give the push time to land, then confirm no restart happened.
	time.Sleep(100 * time.Millisecond)
	if factory.count() != 1 {
		t.Fatalf("trigger-only change restarted the analyzer: %d sessions", factory.count())
	}
}

func hasMessage(p publishDiagnosticsParams, message string) bool {
	for _, d := range p.Diagnostics {
		if d.Message == message {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

// disabledAnalyzerOverlay keeps the compiler path intact but turns the
// analyzer off entirely.
func disabledAnalyzerOverlay() config.Overlay {
	no := false
	return config.Overlay{
		Analyzer: &config.AnalyzerOverlay{Enabled: &no},
	}
}
