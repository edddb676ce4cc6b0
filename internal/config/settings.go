package config

// AnalyzerMode controls how much of the editor surface clangd owns.
type AnalyzerMode string

const (
	// ModeProxy lets the analyzer own the language features; local providers
	// are withheld from the negotiated capabilities.
	ModeProxy AnalyzerMode = "proxy"
	// ModeAugment merges analyzer answers with the local tag-based ones.
	ModeAugment AnalyzerMode = "augment"
	// ModeDisabled never starts the analyzer.
	ModeDisabled AnalyzerMode = "disabled"
)

// DiagnosticsMode is the policy for analyzer-sourced diagnostics.
type DiagnosticsMode string

const (
	DiagnosticsAll      DiagnosticsMode = "all"
	DiagnosticsFiltered DiagnosticsMode = "filtered"
	DiagnosticsNone     DiagnosticsMode = "none"
)

// CompilerSettings configures the crestc batch runs.
type CompilerSettings struct {
	Path         string
	Enabled      bool
	IncludePaths []string
	MaxProblems  int
}

// AnalyzerSettings configures the clangd session.
type AnalyzerSettings struct {
	Enabled            bool
	Mode               AnalyzerMode
	Path               string
	Args               []string
	CompileCommandsDir string
	FallbackFlags      []string
	DiagnosticsMode    DiagnosticsMode
}

// Settings is the immutable-per-use configuration snapshot threaded through
// every component. Produce new values through Merge; never mutate one that has
// been handed out.
type Settings struct {
	CrestHome string
	Compiler  CompilerSettings
	Analyzer  AnalyzerSettings
	RunOnSave bool
	RunOnType bool
	Trace     bool
}

// Default returns the base layer of the configuration stack.
func Default() Settings {
	return Settings{
		Compiler: CompilerSettings{
			Path:        "crestc",
			Enabled:     true,
			MaxProblems: 100,
		},
		Analyzer: AnalyzerSettings{
			Enabled:         true,
			Mode:            ModeAugment,
			Path:            "clangd",
			DiagnosticsMode: DiagnosticsFiltered,
		},
		RunOnSave: true,
		RunOnType: true,
	}
}

// Overlay is one partial configuration layer. Pointer fields distinguish
// "absent" from zero values so that merges stay left-biased per field.
type Overlay struct {
	CrestHome *string          `json:"crestHome,omitempty" toml:"crest_home"`
	Compiler  *CompilerOverlay `json:"compiler,omitempty" toml:"compiler"`
	Analyzer  *AnalyzerOverlay `json:"analyzer,omitempty" toml:"analyzer"`
	RunOnSave *bool            `json:"runOnSave,omitempty" toml:"run_on_save"`
	RunOnType *bool            `json:"runOnType,omitempty" toml:"run_on_type"`
	Trace     *bool            `json:"trace,omitempty" toml:"trace"`
}

type CompilerOverlay struct {
	Path         *string  `json:"path,omitempty" toml:"path"`
	Enabled      *bool    `json:"enabled,omitempty" toml:"enabled"`
	IncludePaths []string `json:"includePaths,omitempty" toml:"include_paths"`
	MaxProblems  *int     `json:"maxNumberOfProblems,omitempty" toml:"max_problems"`
}

type AnalyzerOverlay struct {
	Enabled            *bool    `json:"enabled,omitempty" toml:"enabled"`
	Mode               *string  `json:"mode,omitempty" toml:"mode"`
	Path               *string  `json:"path,omitempty" toml:"path"`
	Args               []string `json:"args,omitempty" toml:"args"`
	CompileCommandsDir *string  `json:"compileCommandsDir,omitempty" toml:"compile_commands_dir"`
	FallbackFlags      []string `json:"fallbackFlags,omitempty" toml:"fallback_flags"`
	DiagnosticsMode    *string  `json:"diagnosticsMode,omitempty" toml:"diagnostics_mode"`
}
