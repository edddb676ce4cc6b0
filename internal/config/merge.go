package config

// Merge applies overlay on top of base and returns the merged snapshot.
// The merge is left-biased per field: a key present in the overlay always
// wins, an absent key falls through to base. Slices replace wholesale; there
// is no element-wise union because editors send complete lists.
func Merge(base Settings, overlay Overlay) Settings {
	out := base
	if overlay.CrestHome != nil {
		out.CrestHome = *overlay.CrestHome
	}
	if overlay.RunOnSave != nil {
		out.RunOnSave = *overlay.RunOnSave
	}
	if overlay.RunOnType != nil {
		out.RunOnType = *overlay.RunOnType
	}
	if overlay.Trace != nil {
		out.Trace = *overlay.Trace
	}
	if c := overlay.Compiler; c != nil {
		if c.Path != nil {
			out.Compiler.Path = *c.Path
		}
		if c.Enabled != nil {
			out.Compiler.Enabled = *c.Enabled
		}
		if c.IncludePaths != nil {
			out.Compiler.IncludePaths = append([]string(nil), c.IncludePaths...)
		}
		if c.MaxProblems != nil && *c.MaxProblems > 0 {
			out.Compiler.MaxProblems = *c.MaxProblems
		}
	}
	if a := overlay.Analyzer; a != nil {
		if a.Enabled != nil {
			out.Analyzer.Enabled = *a.Enabled
		}
		if a.Mode != nil {
			out.Analyzer.Mode = normalizeMode(*a.Mode, out.Analyzer.Mode)
		}
		if a.Path != nil {
			out.Analyzer.Path = *a.Path
		}
		if a.Args != nil {
			out.Analyzer.Args = append([]string(nil), a.Args...)
		}
		if a.CompileCommandsDir != nil {
			out.Analyzer.CompileCommandsDir = *a.CompileCommandsDir
		}
		if a.FallbackFlags != nil {
			out.Analyzer.FallbackFlags = append([]string(nil), a.FallbackFlags...)
		}
		if a.DiagnosticsMode != nil {
			out.Analyzer.DiagnosticsMode = normalizeDiagnosticsMode(*a.DiagnosticsMode, out.Analyzer.DiagnosticsMode)
		}
	}
	return out
}

// MergeAll folds a stack of overlays onto base, least specific first.
func MergeAll(base Settings, overlays ...Overlay) Settings {
	out := base
	for _, overlay := range overlays {
		out = Merge(out, overlay)
	}
	return out
}

func normalizeMode(raw string, fallback AnalyzerMode) AnalyzerMode {
	switch AnalyzerMode(raw) {
	case ModeProxy, ModeAugment, ModeDisabled:
		return AnalyzerMode(raw)
	}
	return fallback
}

func normalizeDiagnosticsMode(raw string, fallback DiagnosticsMode) DiagnosticsMode {
	switch DiagnosticsMode(raw) {
	case DiagnosticsAll, DiagnosticsFiltered, DiagnosticsNone:
		return DiagnosticsMode(raw)
	}
	return fallback
}
