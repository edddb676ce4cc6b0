package lsp

import (
	"encoding/json"

	"crest/internal/config"
	"crest/internal/lang"
)

func (s *Server) handleCompletion(msg *rpcMessage) error {
	var params completionParams
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

	prefix := linePrefix(text, params.Position)
	lineCtx, _ := lang.ClassifyLine(prefix)

	// Context-restricted sets are answered locally: the analyzer knows
	// neither the Crest header layout nor the vector components.
	switch lineCtx {
	case lang.ContextInclude:
		return s.sendResponse(msg.ID, completionList{Items: staticItems(lang.Headers())})
	case lang.ContextMember:
		return s.sendResponse(msg.ID, completionList{Items: staticItems(lang.Accessors())})
	}

	locals := staticItems(lang.General())
	settings := s.currentSettings()
	analyzerItems, delegated := s.analyzerCompletions(msg.Params)
	if delegated && settings.Analyzer.Mode == config.ModeProxy {
		return s.sendResponse(msg.ID, completionList{Items: analyzerItems})
	}
	if !delegated {
		return s.sendResponse(msg.ID, completionList{Items: locals})
	}
	// Augment: analyzer items first, locals fill the gaps by label.
	seen := make(map[string]struct{}, len(analyzerItems))
	for _, item := range analyzerItems {
		seen[item.Label] = struct{}{}
	}
	merged := analyzerItems
	for _, item := range locals {
		if _, ok := seen[item.Label]; ok {
			continue
		}
		merged = append(merged, item)
	}
	return s.sendResponse(msg.ID, completionList{Items: merged})
}

// analyzerCompletions forwards the completion request and flattens the two
// result shapes the protocol allows (bare array or CompletionList).
func (s *Server) analyzerCompletions(params json.RawMessage) ([]completionItem, bool) {
	result, ok := s.delegate("textDocument/completion", params)
	if !ok {
		return nil, false
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, true
	}
	var list completionList
	if err := json.Unmarshal(result, &list); err == nil && list.Items != nil {
		return list.Items, true
	}
	var items []completionItem
	if err := json.Unmarshal(result, &items); err == nil {
		return items, true
	}
	return nil, false
}

func staticItems(entries []lang.Entry) []completionItem {
	items := make([]completionItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, completionItem{
			Label:         e.Label,
			Kind:          completionKindFor(e.Kind),
			Detail:        e.Detail,
			Documentation: e.Doc,
		})
	}
	return items
}

func completionKindFor(kind lang.Kind) int {
	switch kind {
	case lang.KindKeyword:
		return completionKindKeyword
	case lang.KindType:
		return completionKindStruct
	case lang.KindBuiltin:
		return completionKindFunction
	case lang.KindConstant:
		return completionKindConstant
	case lang.KindHeader:
		return completionKindFile
	case lang.KindAccessor:
		return completionKindField
	}
	return completionKindValue
}
