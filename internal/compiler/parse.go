package compiler

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"crest/internal/diag"
)

// Output lines are matched against three fallback patterns, most specific
// first. crestc normally prints the clang-style file:line:col form; older
// toolchain components drop the column, and a few passes drop the severity
// word entirely.
var (
	lineColSevPattern = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(fatal error|error|warning|note|remark|hint):\s*(.+)$`)
	lineSevPattern    = regexp.MustCompile(`^(.+?):(\d+):\s*(fatal error|error|warning|note|remark|hint):\s*(.+)$`)
	lineBarePattern   = regexp.MustCompile(`^(.+?):(\d+):\s*(.+)$`)
)

// bareErrorHints gates the severity-less pattern: a bare file:line: message is
// only a diagnostic when the message itself sounds like one.
var bareErrorHints = []string{
	"error",
	"undefined",
	"undeclared",
	"expected",
	"invalid",
	"cannot",
}

// ParseOutput extracts diagnostics from combined compiler output. Only lines
// whose file component matches tempFile or originalFile by basename are kept,
// and parsing stops once max diagnostics are collected. Line/column values
// are converted from the compiler's 1-based form to the internal 0-based one.
func ParseOutput(output, tempFile, originalFile string, max int) []diag.Diagnostic {
	if max <= 0 {
		max = 100
	}
	tempBase := filepath.Base(tempFile)
	origBase := filepath.Base(originalFile)

	var out []diag.Diagnostic
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(out) >= max {
			break
		}
		d, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		base := filepath.Base(d.File)
		if base != tempBase && base != origBase {
			continue
		}
		d.File = originalFile
		d.Origin = diag.OriginCompiler
		out = append(out, d)
	}
	return out
}

func parseLine(line string) (diag.Diagnostic, bool) {
	if m := lineColSevPattern.FindStringSubmatch(line); m != nil {
		return diag.Diagnostic{
			File:     m[1],
			Line:     toZeroBased(m[2]),
			Col:      toZeroBased(m[3]),
			Severity: parseSeverityWord(m[4]),
			Message:  strings.TrimSpace(m[5]),
		}, true
	}
	if m := lineSevPattern.FindStringSubmatch(line); m != nil {
		return diag.Diagnostic{
			File:     m[1],
			Line:     toZeroBased(m[2]),
			Severity: parseSeverityWord(m[3]),
			Message:  strings.TrimSpace(m[4]),
		}, true
	}
	if m := lineBarePattern.FindStringSubmatch(line); m != nil {
		message := strings.TrimSpace(m[3])
		if !soundsLikeError(message) {
			return diag.Diagnostic{}, false
		}
		return diag.Diagnostic{
			File:     m[1],
			Line:     toZeroBased(m[2]),
			Severity: diag.SevError,
			Message:  message,
		}, true
	}
	return diag.Diagnostic{}, false
}

func parseSeverityWord(word string) diag.Severity {
	if word == "fatal error" {
		return diag.SevError
	}
	return diag.ParseSeverity(word)
}

func soundsLikeError(message string) bool {
	lower := strings.ToLower(message)
	for _, hint := range bareErrorHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// toZeroBased converts the compiler's 1-based positions. Garbage output can
// carry arbitrarily large numbers, so the narrowing is checked rather than
// truncated.
func toZeroBased(value string) int {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	pos, err := safecast.Conv[int](n - 1)
	if err != nil {
		return 0
	}
	return pos
}
