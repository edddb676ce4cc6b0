// Package lang carries the static knowledge about the Crest dialect that the
// editor front-end can answer from without an analyzer: keyword, builtin and
// header tables, hover texts, and the line-context classification used to
// pick the right completion set.
package lang

import (
	"strings"
	"sync"
)

// Kind classifies a static table entry.
type Kind int

const (
	KindKeyword Kind = iota
	KindType
	KindBuiltin
	KindConstant
	KindHeader
	KindAccessor
)

// Entry is one static completion/hover item.
type Entry struct {
	Label  string
	Kind   Kind
	Detail string
	Doc    string
}

// Context tells which completion set a cursor position calls for.
type Context int

const (
	// ContextGeneral offers keywords, types, builtins and constants.
	ContextGeneral Context = iota
	// ContextInclude offers header names only.
	ContextInclude
	// ContextMember offers component accessors only.
	ContextMember
)

// ClassifyLine inspects the text of a line left of the cursor and decides the
// completion context. base is meaningful only for ContextMember and holds the
// identifier before the trailing dot.
func ClassifyLine(prefix string) (Context, string) {
	trimmed := strings.TrimLeft(prefix, " \t")
	if strings.HasPrefix(trimmed, "#") {
		rest := strings.TrimLeft(trimmed[1:], " \t")
		if strings.HasPrefix("include", rest) || strings.HasPrefix(rest, "include") {
			return ContextInclude, ""
		}
	}
	if base, ok := trailingDotIdent(prefix); ok {
		return ContextMember, base
	}
	return ContextGeneral, ""
}

// trailingDotIdent reports whether the prefix ends with `ident.` (optionally
// followed by the start of a member name) and returns that identifier.
func trailingDotIdent(prefix string) (string, bool) {
	i := len(prefix)
	for i > 0 && isIdentByte(prefix[i-1]) {
		i--
	}
	if i == 0 || prefix[i-1] != '.' {
		return "", false
	}
	end := i - 1
	start := end
	for start > 0 && isIdentByte(prefix[start-1]) {
		start--
	}
	if start == end {
		return "", false
	}
	// A digit before the dot means a float literal, not member access.
	if prefix[start] >= '0' && prefix[start] <= '9' {
		return "", false
	}
	return prefix[start:end], true
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

var dialectWords = sync.OnceValue(func() map[string]struct{} {
	words := make(map[string]struct{})
	for _, e := range Keywords() {
		words[e.Label] = struct{}{}
	}
	for _, e := range Types() {
		words[e.Label] = struct{}{}
	}
	for _, e := range Builtins() {
		words[e.Label] = struct{}{}
	}
	return words
})

// MentionsDialect reports whether a source line uses any Crest-only word.
// The diagnostics filter uses this to spot analyzer noise caused by syntax
// plain C tooling does not know.
func MentionsDialect(line string) bool {
	words := dialectWords()
	start := -1
	for i := 0; i <= len(line); i++ {
		if i < len(line) && isIdentByte(line[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if _, ok := words[line[start:i]]; ok {
				return true
			}
			start = -1
		}
	}
	return false
}

var noiseFragments = []string{
	"unknown type name",
	"use of undeclared identifier",
	"implicit declaration of function",
	"implicitly declaring library function",
	"expected ';'",
	"expected expression",
	"call to undeclared function",
}

// IsAnalyzerNoise reports whether an analyzer message looks like fallout from
// Crest syntax the analyzer cannot parse rather than a real defect.
func IsAnalyzerNoise(message string) bool {
	lower := strings.ToLower(message)
	for _, frag := range noiseFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Lookup returns the static entry for a label, for hover answers.
func Lookup(label string) (Entry, bool) {
	e, ok := lookupTable()[label]
	return e, ok
}

var lookupTable = sync.OnceValue(func() map[string]Entry {
	table := make(map[string]Entry)
	for _, set := range [][]Entry{Keywords(), Types(), Builtins(), Constants(), Headers(), Accessors()} {
		for _, e := range set {
			if _, exists := table[e.Label]; !exists {
				table[e.Label] = e
			}
		}
	}
	return table
})
