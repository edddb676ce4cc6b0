package lsp

import (
	"crest/internal/config"
	"crest/internal/diag"
	"crest/internal/lang"
)

// filterAnalyzerDiagnostics applies the diagnostics-mode policy to
// analyzer-sourced results. The filtered mode drops messages that look like
// parser fallout on lines using Crest-only syntax; everything the analyzer
// says about plain C stays.
func filterAnalyzerDiagnostics(mode config.DiagnosticsMode, text string, diags []diag.Diagnostic) []diag.Diagnostic {
	switch mode {
	case config.DiagnosticsNone:
		return nil
	case config.DiagnosticsAll:
		return diags
	}
	if len(diags) == 0 {
		return nil
	}
	out := make([]diag.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if lang.IsAnalyzerNoise(d.Message) && lang.MentionsDialect(lineAt(text, d.Line)) {
			continue
		}
		out = append(out, d)
	}
	return out
}
