package lsp

import (
	"context"
	"time"

	"crest/internal/diag"
	"crest/internal/lang"
)

// scheduleDiagnostics queues one local diagnostics pass for a document. A
// newer event on the same document supersedes the pending timer; results are
// stamped with the version they were computed from and discarded if the
// document moved on in the meantime.
func (s *Server) scheduleDiagnostics(uri string, delay time.Duration) {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return
	}
	version := doc.version
	text := doc.text
	if timer, ok := s.timers[uri]; ok {
		timer.Stop()
	}
	if delay <= 0 {
		delete(s.timers, uri)
		s.mu.Unlock()
		go s.runDiagnostics(uri, version, text)
		return
	}
	s.timers[uri] = time.AfterFunc(delay, func() {
		s.runDiagnostics(uri, version, text)
	})
	s.mu.Unlock()
}

func (s *Server) runDiagnostics(uri string, version int, text string) {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok || doc.version != version {
		s.mu.Unlock()
		return
	}
	path := doc.path
	settings := s.settings
	s.mu.Unlock()

	lint := lang.Validate(path, text)

	var compilerDiags []diag.Diagnostic
	if settings.Compiler.Enabled {
		ctx := s.baseCtx
		if ctx == nil {
			ctx = context.Background()
		}
		compilerDiags = s.compile(ctx, path, text, settings)
	}

	s.mu.Lock()
	doc, ok = s.docs[uri]
	if !ok || doc.version != version {
		// The document changed while the compiler ran; a fresher pass is
		// already scheduled, so these results must not be written back.
		trace := s.settings.Trace
		s.mu.Unlock()
		if trace {
			s.logf("discard diagnostics: uri=%s staleVersion=%d", uri, version)
		}
		return
	}
	doc.lintDiags = lint
	doc.compilerDiags = compilerDiags
	doc.compilerVersion = version
	payload := s.mergedLocked(doc)
	s.mu.Unlock()

	if err := s.sendPublish(uri, payload); err != nil {
		s.logf("failed to publish diagnostics: %v", err)
	}
}

// onAnalyzerDiagnostics is the sink registered with the analyzer session. It
// runs on the session's reader goroutine.
func (s *Server) onAnalyzerDiagnostics(rawURI string, diags []diag.Diagnostic) {
	uri := canonicalURI(rawURI)
	if uri == "" {
		return
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return
	}
	doc.analyzerDiags = diags
	doc.analyzerGen = s.analyzerGen
	payload := s.mergedLocked(doc)
	s.mu.Unlock()

	if err := s.sendPublish(uri, payload); err != nil {
		s.logf("failed to publish diagnostics: %v", err)
	}
}

// mergedLocked builds the full-replacement diagnostics payload for one
// document: policy-filtered analyzer results first, then compiler, then
// lint, deduplicated and truncated. Analyzer findings lead so truncation
// drops the local caches before the authoritative ones. Callers hold s.mu.
func (s *Server) mergedLocked(doc *document) []lspDiagnostic {
	analyzerDiags := doc.analyzerDiags
	if doc.analyzerGen != s.analyzerGen {
		// Left over from a previous analyzer session configuration.
		analyzerDiags = nil
	}
	analyzerDiags = filterAnalyzerDiagnostics(s.settings.Analyzer.DiagnosticsMode, doc.text, analyzerDiags)
	merged := diag.MergeDedup(s.settings.Compiler.MaxProblems, analyzerDiags, doc.compilerDiags, doc.lintDiags)
	return toWireDiagnostics(merged)
}

func toWireDiagnostics(list []diag.Diagnostic) []lspDiagnostic {
	out := make([]lspDiagnostic, 0, len(list))
	for _, d := range list {
		endLine, endCol := d.EndLine, d.EndCol
		if endLine == 0 && endCol == 0 {
			endLine = d.Line
			endCol = d.Col
		}
		out = append(out, lspDiagnostic{
			Range: lspRange{
				Start: position{Line: maxZero(d.Line), Character: maxZero(d.Col)},
				End:   position{Line: maxZero(endLine), Character: maxZero(endCol)},
			},
			Severity: d.Severity.LSPSeverity(),
			Source:   string(d.Origin),
			Message:  d.Message,
		})
	}
	return out
}
