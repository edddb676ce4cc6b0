package lsp

import (
	"crest/internal/config"
	"crest/internal/diag"
)

// document is the server-side state of one open file. Local results are
// stamped with the document version they were computed from, analyzer results
// with the session generation that produced them; the stamps are the write
// barrier against stale publishes.
type document struct {
	uri     string
	path    string
	text    string
	version int

	lintDiags       []diag.Diagnostic
	compilerDiags   []diag.Diagnostic
	compilerVersion int

	analyzerDiags []diag.Diagnostic
	analyzerGen   uint64
}

func (s *Server) currentSettings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Server) currentTrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Trace
}

func (s *Server) docText(uri string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return "", false
	}
	return doc.text, true
}
