package analyzer

import (
	"encoding/json"

	"crest/internal/diag"
)

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

type initializeParams struct {
	ProcessID             int               `json:"processId"`
	RootURI               string            `json:"rootUri,omitempty"`
	Capabilities          map[string]any    `json:"capabilities"`
	InitializationOptions map[string]any    `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []workspaceFolder `json:"workspaceFolders,omitempty"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type wireRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type wireDiagnostic struct {
	Range    wireRange `json:"range"`
	Severity int       `json:"severity,omitempty"`
	Source   string    `json:"source,omitempty"`
	Message  string    `json:"message"`
}

type publishDiagnosticsParams struct {
	URI         string           `json:"uri"`
	Version     int              `json:"version,omitempty"`
	Diagnostics []wireDiagnostic `json:"diagnostics"`
}

type logMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// toDiagnostics converts wire diagnostics into the internal model. Positions
// on the wire are already 0-based.
func toDiagnostics(file string, wire []wireDiagnostic) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(wire))
	for _, d := range wire {
		out = append(out, diag.Diagnostic{
			File:     file,
			Line:     d.Range.Start.Line,
			Col:      d.Range.Start.Character,
			EndLine:  d.Range.End.Line,
			EndCol:   d.Range.End.Character,
			Severity: diag.SeverityFromLSP(d.Severity),
			Message:  d.Message,
			Origin:   diag.OriginAnalyzer,
		})
	}
	return out
}
