package diag

// Origin identifies which producer emitted a diagnostic.
type Origin string

const (
	// OriginCompiler marks diagnostics parsed from crestc output.
	OriginCompiler Origin = "crestc"
	// OriginAnalyzer marks diagnostics forwarded from clangd.
	OriginAnalyzer Origin = "clangd"
	// OriginLint marks diagnostics from the built-in heuristic pass.
	OriginLint Origin = "crest-lint"
)

// Diagnostic is one finding against a source file. Line/Col and EndLine/EndCol
// are 0-based. A zero end position means "point diagnostic"; consumers treat
// it as an empty range at the start position. Immutable once constructed.
type Diagnostic struct {
	File     string
	Line     int
	Col      int
	EndLine  int
	EndCol   int
	Severity Severity
	Message  string
	Origin   Origin
}

// Key is the dedup identity: range, severity, message and origin.
// Two producers reporting the same finding remain two entries.
type Key struct {
	File     string
	Line     int
	Col      int
	EndLine  int
	EndCol   int
	Severity Severity
	Message  string
	Origin   Origin
}

func (d Diagnostic) Key() Key {
	return Key{
		File:     d.File,
		Line:     d.Line,
		Col:      d.Col,
		EndLine:  d.EndLine,
		EndCol:   d.EndCol,
		Severity: d.Severity,
		Message:  d.Message,
		Origin:   d.Origin,
	}
}
