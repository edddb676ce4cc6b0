package config

import "strings"

// AnalyzerFingerprint canonicalizes every setting that affects a running
// clangd session. Two snapshots with the same fingerprint can share a session;
// a fingerprint change forces stop-then-start.
func AnalyzerFingerprint(s Settings) string {
	if !s.Analyzer.Enabled || s.Analyzer.Mode == ModeDisabled {
		return ""
	}
	var b strings.Builder
	b.WriteString("path=")
	b.WriteString(s.Analyzer.Path)
	b.WriteString(";mode=")
	b.WriteString(string(s.Analyzer.Mode))
	b.WriteString(";args=")
	b.WriteString(strings.Join(s.Analyzer.Args, "\x00"))
	b.WriteString(";ccdir=")
	b.WriteString(s.Analyzer.CompileCommandsDir)
	b.WriteString(";fallback=")
	b.WriteString(strings.Join(s.Analyzer.FallbackFlags, "\x00"))
	return b.String()
}
