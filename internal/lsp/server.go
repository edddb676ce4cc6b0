package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crest/internal/analyzer"
	"crest/internal/compiler"
	"crest/internal/config"
	"crest/internal/diag"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// CompileFunc runs one batch compiler pass over a document snapshot.
type CompileFunc func(ctx context.Context, docPath, text string, settings config.Settings) []diag.Diagnostic

// analyzerSession abstracts the clangd client so tests can stub it.
type analyzerSession interface {
	Start(ctx context.Context) error
	Ready() bool
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(method string, params any) error
	Stop()
}

// NewAnalyzerFunc builds a fresh analyzer session from resolved options.
type NewAnalyzerFunc func(opts analyzer.Options) analyzerSession

// ServerOptions configures the front-end. Defaults carries the already-merged
// lower layers (built-in defaults plus the user file); CLIOverlay is applied
// last, after project file and client pushes.
type ServerOptions struct {
	Defaults    config.Settings
	CLIOverlay  config.Overlay
	Compile     CompileFunc
	NewAnalyzer NewAnalyzerFunc
	Debounce    time.Duration
	Version     string
}

// Server bridges the editor, the crestc batch compiler and the clangd
// session over stdio JSON-RPC.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	mu   sync.Mutex
	docs map[string]*document

	defaults       config.Settings
	projectOverlay config.Overlay
	clientOverlay  config.Overlay
	cliOverlay     config.Overlay
	settings       config.Settings

	workspaceRoot     string
	projectFile       string
	shutdownRequested bool

	session            analyzerSession
	sessionFingerprint string
	analyzerGen        uint64

	compile     CompileFunc
	newAnalyzer NewAnalyzerFunc
	debounce    time.Duration
	timers      map[string]*time.Timer
	baseCtx     context.Context
	watcher     *config.Watcher
	version     string
}

// NewServer constructs the session front-end.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	compile := opts.Compile
	if compile == nil {
		runner := &compiler.Runner{}
		compile = runner.Run
	}
	newAnalyzer := opts.NewAnalyzer
	if newAnalyzer == nil {
		newAnalyzer = func(o analyzer.Options) analyzerSession {
			return analyzer.New(o)
		}
	}
	s := &Server{
		in:          bufio.NewReader(in),
		out:         bufio.NewWriter(out),
		docs:        make(map[string]*document),
		defaults:    opts.Defaults,
		cliOverlay:  opts.CLIOverlay,
		compile:     compile,
		newAnalyzer: newAnalyzer,
		debounce:    debounce,
		timers:      make(map[string]*time.Timer),
		version:     opts.Version,
	}
	s.settings = s.resolveSettingsLocked()
	return s
}

// Run serves requests until shutdown/exit or a read failure.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.teardown()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) teardown() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if session != nil {
		session.Stop()
	}
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			s.logf("failed to close config watcher: %v", err)
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.handleInitialized()
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/definition":
		return s.handleDelegated(msg, "textDocument/definition")
	case "textDocument/references":
		return s.handleDelegated(msg, "textDocument/references")
	case "textDocument/documentSymbol":
		return s.handleDelegated(msg, "textDocument/documentSymbol")
	case "workspace/symbol":
		return s.handleDelegated(msg, "workspace/symbol")
	case "textDocument/semanticTokens/full":
		return s.handleDelegated(msg, "textDocument/semanticTokens/full")
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	s.mu.Lock()
	s.workspaceRoot = root
	if root != "" {
		overlay, path, err := config.LoadProjectOverlay(root)
		if err != nil {
			s.mu.Unlock()
			s.logf("failed to load project config: %v", err)
			s.mu.Lock()
		} else {
			s.projectOverlay = overlay
			s.projectFile = path
		}
	}
	s.settings = s.resolveSettingsLocked()
	settings := s.settings
	s.mu.Unlock()

	analyzerOwned := settings.Analyzer.Enabled && settings.Analyzer.Mode != config.ModeDisabled
	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			HoverProvider: true,
			CompletionProvider: &completionOptions{
				TriggerCharacters: []string{".", "/", "<", "\""},
			},
			// Semantic providers exist only as delegation targets; without
			// an analyzer there is nothing behind them.
			DefinitionProvider:      analyzerOwned,
			ReferencesProvider:      analyzerOwned,
			DocumentSymbolProvider:  analyzerOwned,
			WorkspaceSymbolProvider: analyzerOwned,
		},
		ServerInfo: &serverInfo{Name: "crest-lsp", Version: s.version},
	}
	if analyzerOwned && settings.Analyzer.Mode == config.ModeProxy {
		result.Capabilities.SemanticTokensProvider = json.RawMessage(
			`{"full":true,"legend":{"tokenTypes":[],"tokenModifiers":[]}}`)
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleInitialized() {
	s.ensureAnalyzerSession()
	s.startProjectWatcher()
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.clearPublishedDiagnostics()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc := &document{
		uri:     uri,
		path:    uriToPath(uri),
		text:    params.TextDocument.Text,
		version: params.TextDocument.Version,
	}
	s.docs[uri] = doc
	s.mu.Unlock()

	s.forwardToAnalyzer("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": "c",
			"version":    params.TextDocument.Version,
			"text":       params.TextDocument.Text,
		},
	})
	// Diagnostics always run on open regardless of the trigger settings.
	s.scheduleDiagnostics(uri, 0)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	runOnType := s.settings.RunOnType
	trace := s.settings.Trace
	s.mu.Unlock()
	if trace {
		s.logf("didChange: uri=%s version=%d", uri, params.TextDocument.Version)
	}

	s.forwardToAnalyzer("textDocument/didChange", map[string]any{
		"textDocument": map[string]any{
			"uri":     uri,
			"version": params.TextDocument.Version,
		},
		"contentChanges": params.ContentChanges,
	})
	if runOnType {
		s.scheduleDiagnostics(uri, s.debounce)
	}
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if params.Text != nil {
		doc.text = *params.Text
	}
	runOnSave := s.settings.RunOnSave
	s.mu.Unlock()

	s.forwardToAnalyzer("textDocument/didSave", map[string]any{
		"textDocument": map[string]any{"uri": uri},
	})
	if runOnSave {
		s.scheduleDiagnostics(uri, 0)
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	_, had := s.docs[uri]
	delete(s.docs, uri)
	if timer, ok := s.timers[uri]; ok {
		timer.Stop()
		delete(s.timers, uri)
	}
	s.mu.Unlock()

	s.forwardToAnalyzer("textDocument/didClose", map[string]any{
		"textDocument": map[string]any{"uri": uri},
	})
	if had {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
	return nil
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	s.mu.Unlock()
	for _, uri := range uris {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Diagnostics: list,
		},
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "lsp: "+format+"\n", args...)
}

func maxZero(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
