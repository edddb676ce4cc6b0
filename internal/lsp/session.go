package lsp

import (
	"encoding/json"

	"crest/internal/analyzer"
	"crest/internal/config"
)

// resolveSettingsLocked recomputes the effective snapshot from the layered
// overlays. CLI flags win over everything, client pushes over files.
func (s *Server) resolveSettingsLocked() config.Settings {
	return config.MergeAll(s.defaults, s.projectOverlay, s.clientOverlay, s.cliOverlay)
}

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applyClientSettings(params.Settings)
	return nil
}

func (s *Server) applyClientSettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var wrapper crestClientSettings
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		s.logf("ignoring malformed configuration push: %v", err)
		return
	}
	section := wrapper.Crest
	if len(section) == 0 {
		// Some clients push the bare section without the wrapper object.
		section = raw
	}
	var overlay config.Overlay
	if err := json.Unmarshal(section, &overlay); err != nil {
		s.logf("ignoring malformed configuration push: %v", err)
		return
	}
	s.mu.Lock()
	s.clientOverlay = overlay
	s.settings = s.resolveSettingsLocked()
	s.mu.Unlock()
	s.settingsChanged()
}

// reloadProjectOverlay re-reads crest.json after a watcher event; it behaves
// exactly like a client configuration push.
func (s *Server) reloadProjectOverlay() {
	s.mu.Lock()
	path := s.projectFile
	s.mu.Unlock()
	if path == "" {
		return
	}
	overlay, err := config.LoadProjectFile(path)
	if err != nil {
		s.logf("failed to reload project config: %v", err)
		return
	}
	s.mu.Lock()
	s.projectOverlay = overlay
	s.settings = s.resolveSettingsLocked()
	s.mu.Unlock()
	s.logf("project config reloaded: %s", path)
	s.settingsChanged()
}

// settingsChanged re-evaluates the analyzer session against the new snapshot
// and revalidates every open document.
func (s *Server) settingsChanged() {
	s.ensureAnalyzerSession()
	s.mu.Lock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	s.mu.Unlock()
	for _, uri := range uris {
		s.scheduleDiagnostics(uri, 0)
	}
}

// ensureAnalyzerSession starts, restarts or stops the clangd session so it
// matches the current settings fingerprint. A fingerprint change invalidates
// every cached analyzer result via the generation counter.
func (s *Server) ensureAnalyzerSession() {
	s.mu.Lock()
	settings := s.settings
	fingerprint := config.AnalyzerFingerprint(settings)
	if fingerprint == s.sessionFingerprint && s.session != nil {
		s.mu.Unlock()
		return
	}
	old := s.session
	s.session = nil
	s.sessionFingerprint = fingerprint
	s.analyzerGen++
	root := s.workspaceRoot
	docs := make([]*document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if fingerprint == "" {
		// Analyzer disabled; nothing to start.
		return
	}

	path, args, err := analyzer.BuildCommand(settings)
	if err != nil {
		s.logf("analyzer unavailable: %v", err)
		return
	}
	session := s.newAnalyzer(analyzer.Options{
		Path:          path,
		Args:          args,
		RootDir:       root,
		FallbackFlags: settings.Analyzer.FallbackFlags,
		OnDiagnostics: s.onAnalyzerDiagnostics,
		Logf:          s.logf,
	})
	s.mu.Lock()
	if s.sessionFingerprint != fingerprint {
		s.mu.Unlock()
		session.Stop()
		return
	}
	s.session = session
	s.mu.Unlock()

	// Open documents are replayed immediately; the session queues them
	// until its handshake completes.
	for _, doc := range docs {
		if err := session.Notify("textDocument/didOpen", map[string]any{
			"textDocument": map[string]any{
				"uri":        doc.uri,
				"languageId": "c",
				"version":    doc.version,
				"text":       doc.text,
			},
		}); err != nil {
			s.logf("failed to replay didOpen: %v", err)
		}
	}
	go func() {
		ctx := s.baseCtx
		if ctx == nil {
			return
		}
		if err := session.Start(ctx); err != nil {
			s.logf("analyzer session failed to start: %v", err)
			s.mu.Lock()
			if s.session == session {
				s.session = nil
			}
			s.mu.Unlock()
		}
	}()
}

// forwardToAnalyzer sends one notification to the live session, if any.
// Ordering follows the server loop: events are forwarded in arrival order.
func (s *Server) forwardToAnalyzer(method string, params any) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return
	}
	if err := session.Notify(method, params); err != nil {
		s.logf("failed to forward %s: %v", method, err)
	}
}

func (s *Server) currentSession() analyzerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Server) startProjectWatcher() {
	s.mu.Lock()
	path := s.projectFile
	already := s.watcher != nil
	s.mu.Unlock()
	if path == "" || already {
		return
	}
	watcher, err := config.WatchProjectFile(path, s.reloadProjectOverlay)
	if err != nil {
		s.logf("failed to watch project config: %v", err)
		return
	}
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
}
