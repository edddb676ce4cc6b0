package diagfmt

import (
	"encoding/json"
	"io"

	"crest/internal/diag"
)

// DiagnosticJSON is the wire shape of one finding. Positions stay 0-based so
// the output round-trips with editor protocols.
type DiagnosticJSON struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	EndLine  int    `json:"end_line,omitempty"`
	EndCol   int    `json:"end_col,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Origin   string `json:"origin,omitempty"`
}

// Output is the root JSON document.
type Output struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
}

// JSON writes all diagnostics as a single JSON document.
func JSON(w io.Writer, diags []diag.Diagnostic, opts JSONOpts) error {
	out := Output{Diagnostics: make([]DiagnosticJSON, 0, len(diags))}
	for _, d := range diags {
		out.Diagnostics = append(out.Diagnostics, DiagnosticJSON{
			File:     displayPath(d.File, opts.PathMode),
			Line:     d.Line,
			Col:      d.Col,
			EndLine:  d.EndLine,
			EndCol:   d.EndCol,
			Severity: severityLabel(d.Severity),
			Message:  d.Message,
			Origin:   string(d.Origin),
		})
		switch d.Severity {
		case diag.SevError:
			out.Errors++
		case diag.SevWarning:
			out.Warnings++
		}
	}
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
