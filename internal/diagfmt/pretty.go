package diagfmt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"crest/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	hintColor    = color.New(color.FgHiBlack)
	originColor  = color.New(color.FgHiBlack)
	caretColor   = color.New(color.FgGreen, color.Bold)
)

// Pretty writes one block per diagnostic:
//
//	<path>:<line>:<col>: <severity>: <message> [origin]
//	    <source line>
//	    ^~~~
//
// Positions are printed 1-based. The source context is read from disk and
// silently skipped when the file is gone or the line is out of range.
func Pretty(w io.Writer, diags []diag.Diagnostic, opts PrettyOpts) {
	lines := newLineCache()
	for _, d := range diags {
		writePretty(w, d, opts, lines)
	}
}

func writePretty(w io.Writer, d diag.Diagnostic, opts PrettyOpts, lines *lineCache) {
	sev := severityLabel(d.Severity)
	if opts.Color {
		sev = severityColor(d.Severity).Sprint(sev)
	}
	fmt.Fprintf(w, "%s:%d:%d: %s: %s", displayPath(d.File, opts.PathMode), d.Line+1, d.Col+1, sev, d.Message)
	if opts.ShowOrigin && d.Origin != "" {
		tag := "[" + string(d.Origin) + "]"
		if opts.Color {
			tag = originColor.Sprint(tag)
		}
		fmt.Fprintf(w, " %s", tag)
	}
	fmt.Fprintln(w)

	if !opts.ShowSource {
		return
	}
	line, ok := lines.line(d.File, d.Line)
	if !ok {
		return
	}
	fmt.Fprintf(w, "    %s\n", line)
	marker := caretLine(line, d)
	if opts.Color {
		marker = caretColor.Sprint(marker)
	}
	fmt.Fprintf(w, "    %s\n", marker)
}

// caretLine underlines the diagnostic range. The pad is built from the
// display width of the text before the column so tabs and wide runes keep
// the caret aligned.
func caretLine(line string, d diag.Diagnostic) string {
	runes := []rune(line)
	col := d.Col
	if col > len(runes) {
		col = len(runes)
	}
	prefix := string(runes[:col])
	prefix = strings.ReplaceAll(prefix, "\t", "    ")
	pad := strings.Repeat(" ", runewidth.StringWidth(prefix))

	span := 1
	if d.EndLine == d.Line && d.EndCol > d.Col {
		span = d.EndCol - d.Col
	}
	if rest := len(runes) - col; span > rest && rest > 0 {
		span = rest
	}
	if span < 1 {
		span = 1
	}
	return pad + "^" + strings.Repeat("~", span-1)
}

func severityLabel(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	case diag.SevInfo:
		return "info"
	default:
		return "hint"
	}
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	case diag.SevInfo:
		return infoColor
	default:
		return hintColor
	}
}

func displayPath(path string, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative:
		return relativePath(path)
	default:
		rel := relativePath(path)
		if len(rel) < len(path) {
			return rel
		}
		return path
	}
}

func relativePath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// lineCache avoids re-reading a file for each of its diagnostics.
type lineCache struct {
	files map[string][]string
}

func newLineCache() *lineCache {
	return &lineCache{files: make(map[string][]string)}
}

func (c *lineCache) line(path string, n int) (string, bool) {
	lines, ok := c.files[path]
	if !ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			c.files[path] = nil
			return "", false
		}
		lines = strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
		c.files[path] = lines
	}
	if n < 0 || n >= len(lines) {
		return "", false
	}
	return strings.ReplaceAll(lines[n], "\t", "    "), true
}
