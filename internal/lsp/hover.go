package lsp

import (
	"encoding/json"
	"strings"

	"crest/internal/lang"
)

const hoverSeparator = "\n\n---\n\n"

func (s *Server) handleHover(msg *rpcMessage) error {
	var params hoverParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	uri := canonicalURI(params.TextDocument.URI)
	text, ok := s.docText(uri)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}

	sections := make([]string, 0, 2)
	if contents, ok := s.analyzerHover(msg.Params); ok && contents != "" {
		sections = append(sections, contents)
	}
	if word := wordAt(text, params.Position); word != "" {
		if entry, ok := lang.Lookup(word); ok {
			sections = append(sections, formatEntryHover(entry))
		}
	}
	if len(sections) == 0 {
		return s.sendResponse(msg.ID, nil)
	}
	result := &hover{
		Contents: markupContent{
			Kind:  "markdown",
			Value: strings.Join(sections, hoverSeparator),
		},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) analyzerHover(params json.RawMessage) (string, bool) {
	result, ok := s.delegate("textDocument/hover", params)
	if !ok || len(result) == 0 || string(result) == "null" {
		return "", false
	}
	var h hover
	if err := json.Unmarshal(result, &h); err != nil {
		return "", false
	}
	return h.Contents.Value, true
}

func formatEntryHover(entry lang.Entry) string {
	var b strings.Builder
	switch {
	case entry.Kind == lang.KindBuiltin && entry.Detail != "":
		// The detail of a builtin is its signature.
		b.WriteString("```crest\n" + entry.Detail + "\n```")
	case entry.Detail != "":
		b.WriteString("`" + entry.Label + "` (" + entry.Detail + ")")
	default:
		b.WriteString("`" + entry.Label + "`")
	}
	if entry.Doc != "" {
		b.WriteString("\n\n")
		b.WriteString(entry.Doc)
	}
	return b.String()
}

// wordAt extracts the identifier under the cursor.
func wordAt(text string, pos position) string {
	offset := offsetForPosition(text, pos)
	if offset > len(text) {
		offset = len(text)
	}
	start := offset
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	end := offset
	for end < len(text) && isWordByte(text[end]) {
		end++
	}
	if start == end {
		return ""
	}
	return text[start:end]
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
