package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crest/internal/analyzer"
	"crest/internal/config"
	"crest/internal/diag"
)

// fakeSession is a scriptable stand-in for the clangd client.
type fakeSession struct {
	mu      sync.Mutex
	ready   bool
	stopped bool
	notes   []string
	handler func(method string, params any) (json.RawMessage, error)
}

func (f *fakeSession) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
	return nil
}

func (f *fakeSession) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready && !f.stopped
}

func (f *fakeSession) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		return handler(method, params)
	}
	return json.RawMessage("null"), nil
}

func (f *fakeSession) Notify(method string, params any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, method)
	return nil
}

func (f *fakeSession) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.ready = false
}

func (f *fakeSession) notified(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.notes {
		if m == method {
			return true
		}
	}
	return false
}

// sessionFactory records every session the server creates.
type sessionFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	options  []analyzer.Options
	handler  func(method string, params any) (json.RawMessage, error)
}

func (sf *sessionFactory) new(opts analyzer.Options) analyzerSession {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	session := &fakeSession{handler: sf.handler}
	sf.sessions = append(sf.sessions, session)
	sf.options = append(sf.options, opts)
	return session
}

func (sf *sessionFactory) count() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return len(sf.sessions)
}

func (sf *sessionFactory) last() (*fakeSession, analyzer.Options) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if len(sf.sessions) == 0 {
		return nil, analyzer.Options{}
	}
	return sf.sessions[len(sf.sessions)-1], sf.options[len(sf.options)-1]
}

type serverHarness struct {
	t      *testing.T
	stdin  *io.PipeWriter
	sendMu sync.Mutex
	msgs   chan rpcMessage
	done   chan error
	nextID int
}

func newHarness(t *testing.T, opts ServerOptions) *serverHarness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	server := NewServer(inR, outW, opts)

	done := make(chan error, 1)
	go func() {
		done <- server.Run(context.Background())
	}()

	msgs := make(chan rpcMessage, 64)
	go func() {
		reader := bufio.NewReader(outR)
		for {
			payload, err := readMessage(reader)
			if err != nil {
				close(msgs)
				return
			}
			var m rpcMessage
			if json.Unmarshal(payload, &m) == nil {
				msgs <- m
			}
		}
	}()

	h := &serverHarness{t: t, stdin: inW, msgs: msgs, done: done}
	t.Cleanup(func() {
		inW.Close()
		outR.Close()
	})
	return h
}

func (h *serverHarness) write(msg map[string]any) {
	h.t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		h.t.Fatalf("marshal request: %v", err)
	}
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	if err := writeMessage(h.stdin, payload); err != nil {
		h.t.Fatalf("write request: %v", err)
	}
}

func (h *serverHarness) notify(method string, params any) {
	h.t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "method": method}
	if params != nil {
		msg["params"] = params
	}
	h.write(msg)
}

func (h *serverHarness) request(method string, params any) rpcMessage {
	h.t.Helper()
	h.nextID++
	id := h.nextID
	msg := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		msg["params"] = params
	}
	h.write(msg)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-h.msgs:
			if !ok {
				h.t.Fatalf("server output closed waiting for %s response", method)
			}
			var got int
			if len(m.ID) > 0 && json.Unmarshal(m.ID, &got) == nil && got == id {
				return m
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s response", method)
		}
	}
}

// waitPublish returns the next diagnostics publish for uri that satisfies
// pred (pred may be nil).
func (h *serverHarness) waitPublish(uri string, pred func(publishDiagnosticsParams) bool) publishDiagnosticsParams {
	h.t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-h.msgs:
			if !ok {
				h.t.Fatalf("server output closed waiting for diagnostics")
			}
			if m.Method != "textDocument/publishDiagnostics" {
				continue
			}
			var params publishDiagnosticsParams
			if err := json.Unmarshal(m.Params, &params); err != nil {
				continue
			}
			if params.URI != uri {
				continue
			}
			if pred == nil || pred(params) {
				return params
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for diagnostics publish for %s", uri)
		}
	}
}

func (h *serverHarness) initialize(root string) rpcMessage {
	h.t.Helper()
	params := map[string]any{}
	if root != "" {
		params["rootUri"] = pathToURI(root)
	}
	resp := h.request("initialize", params)
	h.notify("initialized", map[string]any{})
	return resp
}

func (h *serverHarness) openDoc(uri, text string, version int) {
	h.t.Helper()
	h.notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": "crest",
			"version":    version,
			"text":       text,
		},
	})
}

func (h *serverHarness) changeDoc(uri string, version int, text string) {
	h.t.Helper()
	h.notify("textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": uri, "version": version},
		"contentChanges": []map[string]any{{"text": text}},
	})
}

func testDocURI(t *testing.T, name string) string {
	t.Helper()
	return pathToURI(filepath.Join(t.TempDir(), name))
}

// analyzerEnabledOverlay makes the analyzer resolvable in tests by pointing
// it at the test binary itself; the fake factory never execs it.
func analyzerEnabledOverlay(mode string) config.Overlay {
	path := os.Args[0]
	enabled := true
	return config.Overlay{
		Analyzer: &config.AnalyzerOverlay{
			Enabled: &enabled,
			Mode:    &mode,
			Path:    &path,
		},
	}
}

func disabledToolsOverlay() config.Overlay {
	no := false
	return config.Overlay{
		Compiler: &config.CompilerOverlay{Enabled: &no},
		Analyzer: &config.AnalyzerOverlay{Enabled: &no},
	}
}

func compileStub(diags ...diag.Diagnostic) CompileFunc {
	return func(ctx context.Context, docPath, text string, settings config.Settings) []diag.Diagnostic {
		out := make([]diag.Diagnostic, len(diags))
		for i, d := range diags {
			d.File = docPath
			out[i] = d
		}
		return out
	}
}

func expectSources(t *testing.T, params publishDiagnosticsParams, want ...string) {
	t.Helper()
	seen := make(map[string]bool)
	for _, d := range params.Diagnostics {
		seen[d.Source] = true
	}
	for _, source := range want {
		if !seen[source] {
			t.Fatalf("publish missing source %q: %s", source, describePublish(params))
		}
	}
}

func describePublish(params publishDiagnosticsParams) string {
	out := ""
	for _, d := range params.Diagnostics {
		out += fmt.Sprintf("[%s %d:%d %s] ", d.Source, d.Range.Start.Line, d.Range.Start.Character, d.Message)
	}
	return out
}
