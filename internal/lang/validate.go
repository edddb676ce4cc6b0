package lang

import (
	"strings"

	"crest/internal/diag"
)

// Validate is the fast in-process validator: purely textual checks that
// give instant feedback before either external source answers. It never
// reports above warning severity because it does not parse.
func Validate(path, text string) []diag.Diagnostic {
	var out []diag.Diagnostic
	braces := 0
	parens := 0
	lastBraceLine := 0
	lastParenLine := 0

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		code := stripLineComment(line)

		for col, ch := range []byte(code) {
			switch ch {
			case '{':
				braces++
				lastBraceLine = i
			case '}':
				braces--
				if braces < 0 {
					out = append(out, diag.Diagnostic{
						File: path, Line: i, Col: col, EndLine: i, EndCol: col + 1,
						Severity: diag.SevWarning,
						Message:  "unmatched closing brace",
						Origin:   diag.OriginLint,
					})
					braces = 0
				}
			case '(':
				parens++
				lastParenLine = i
			case ')':
				parens--
				if parens < 0 {
					parens = 0
				}
			}
		}

		if d, ok := checkDirective(path, i, code); ok {
			out = append(out, d)
		}
		if d, ok := checkMissingSemicolon(path, i, code); ok {
			out = append(out, d)
		}
	}

	if braces > 0 {
		out = append(out, diag.Diagnostic{
			File: path, Line: lastBraceLine, Col: 0, EndLine: lastBraceLine, EndCol: 1,
			Severity: diag.SevWarning,
			Message:  "unbalanced braces at end of file",
			Origin:   diag.OriginLint,
		})
	}
	if parens > 0 {
		out = append(out, diag.Diagnostic{
			File: path, Line: lastParenLine, Col: 0, EndLine: lastParenLine, EndCol: 1,
			Severity: diag.SevHint,
			Message:  "unbalanced parentheses at end of file",
			Origin:   diag.OriginLint,
		})
	}
	return out
}

var knownDirectives = map[string]struct{}{
	"include": {}, "define": {}, "undef": {}, "if": {}, "ifdef": {},
	"ifndef": {}, "else": {}, "elif": {}, "endif": {}, "pragma": {},
	"error": {}, "warning": {}, "line": {},
}

func checkDirective(path string, lineNo int, code string) (diag.Diagnostic, bool) {
	trimmed := strings.TrimLeft(code, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return diag.Diagnostic{}, false
	}
	rest := strings.TrimLeft(trimmed[1:], " \t")
	name := rest
	for i := 0; i < len(rest); i++ {
		if !(rest[i] >= 'a' && rest[i] <= 'z') {
			name = rest[:i]
			break
		}
	}
	if name == "" {
		return diag.Diagnostic{}, false
	}
	if _, ok := knownDirectives[name]; ok {
		return diag.Diagnostic{}, false
	}
	col := len(code) - len(trimmed)
	return diag.Diagnostic{
		File: path, Line: lineNo, Col: col, EndLine: lineNo, EndCol: col + 1 + len(name),
		Severity: diag.SevWarning,
		Message:  "unknown preprocessor directive '#" + name + "'",
		Origin:   diag.OriginLint,
	}, true
}

// checkMissingSemicolon flags simple declaration lines that end without a
// terminator. It only looks at lines starting with a known type word to keep
// the false-positive rate near zero.
func checkMissingSemicolon(path string, lineNo int, code string) (diag.Diagnostic, bool) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return diag.Diagnostic{}, false
	}
	first, _, _ := strings.Cut(trimmed, " ")
	switch first {
	case "int", "float", "double", "char", "long", "short", "unsigned",
		"vec2", "vec3", "vec4", "mat3", "mat4":
	default:
		return diag.Diagnostic{}, false
	}
	// Function definitions, control flow and continuations are all excluded
	// by the terminator set.
	last := trimmed[len(trimmed)-1]
	switch last {
	case ';', '{', '}', ',', '(', ')', '\\', ':':
		return diag.Diagnostic{}, false
	}
	if !strings.Contains(trimmed, "=") && strings.Contains(trimmed, "(") {
		return diag.Diagnostic{}, false
	}
	col := len(code) - 1
	return diag.Diagnostic{
		File: path, Line: lineNo, Col: clampZero(col), EndLine: lineNo, EndCol: col + 1,
		Severity: diag.SevHint,
		Message:  "statement may be missing a trailing ';'",
		Origin:   diag.OriginLint,
	}, true
}

func clampZero(value int) int {
	if value < 0 {
		return 0
	}
	return value
}

func stripLineComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return line[:i]
	}
	return line
}
