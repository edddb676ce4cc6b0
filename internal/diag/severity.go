package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevHint is for barely visible editor hints.
	SevHint Severity = iota
	// SevInfo is for informational diagnostics.
	SevInfo
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevHint:
		return "HINT"
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseSeverity maps the textual severities crestc and clang-style tools print
// to the internal enum. Unknown words default to SevError, matching how the
// compiler treats anything it bothers to mention on stderr.
func ParseSeverity(word string) Severity {
	switch word {
	case "warning":
		return SevWarning
	case "note", "info", "remark":
		return SevInfo
	case "hint":
		return SevHint
	default:
		return SevError
	}
}

// LSPSeverity converts to the 1..4 scale used on the wire
// (1=error, 2=warning, 3=info, 4=hint).
func (s Severity) LSPSeverity() int {
	switch s {
	case SevError:
		return 1
	case SevWarning:
		return 2
	case SevInfo:
		return 3
	default:
		return 4
	}
}

// SeverityFromLSP converts a wire severity back; 0 (absent) counts as error,
// which is what clangd intends when it omits the field.
func SeverityFromLSP(sev int) Severity {
	switch sev {
	case 2:
		return SevWarning
	case 3:
		return SevInfo
	case 4:
		return SevHint
	default:
		return SevError
	}
}
