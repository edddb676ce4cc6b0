// Package diagfmt renders merged diagnostics for the CLI, either as colored
// human-readable text or as machine-readable JSON.
package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shows a path relative to the working directory when it is
	// shorter, absolute otherwise.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color      bool
	PathMode   PathMode
	ShowSource bool // print the offending line with a caret under the range
	ShowOrigin bool // append the producing tool in brackets
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode PathMode
	Indent   bool
}
