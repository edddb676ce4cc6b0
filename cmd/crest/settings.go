package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crest/internal/config"
)

// toolFlags are the configuration knobs shared by check and lsp. They form
// the highest-precedence overlay of the settings stack.
type toolFlags struct {
	crestHome string

	compilerPath     string
	compilerDisabled bool
	includePaths     []string
	maxProblems      int

	analyzerPath     string
	analyzerDisabled bool
	analyzerArgs     []string
	compileDBDir     string
	fallbackFlags    []string
	diagnosticsMode  string

	trace bool
}

func (f *toolFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.crestHome, "crest-home", "", "Crest installation root (defaults to $CREST_HOME)")
	flags.StringVar(&f.compilerPath, "compiler", "", "path to the crestc executable")
	flags.BoolVar(&f.compilerDisabled, "no-compiler", false, "skip crestc diagnostics")
	flags.StringArrayVarP(&f.includePaths, "include-path", "I", nil, "extra include directory for crestc (repeatable)")
	flags.IntVar(&f.maxProblems, "max-problems", 0, "cap on diagnostics per file (0 keeps the configured value)")
	flags.StringVar(&f.analyzerPath, "analyzer", "", "path to the clangd executable")
	flags.BoolVar(&f.analyzerDisabled, "no-analyzer", false, "skip clangd diagnostics")
	flags.StringArrayVar(&f.analyzerArgs, "analyzer-arg", nil, "extra clangd argument (repeatable)")
	flags.StringVar(&f.compileDBDir, "compile-commands-dir", "", "directory holding compile_commands.json")
	flags.StringArrayVar(&f.fallbackFlags, "fallback-flag", nil, "clangd fallback compile flag (repeatable)")
	flags.StringVar(&f.diagnosticsMode, "analyzer-diagnostics", "", "analyzer diagnostics policy (all|filtered|none)")
	flags.BoolVar(&f.trace, "trace", false, "log protocol traffic and scheduling decisions")
}

// overlay converts the set flags into a partial configuration layer. Unset
// flags stay absent so lower layers keep their values.
func (f *toolFlags) overlay(cmd *cobra.Command) config.Overlay {
	var o config.Overlay
	changed := cmd.Flags().Changed

	if changed("crest-home") {
		o.CrestHome = &f.crestHome
	}
	if changed("trace") {
		o.Trace = &f.trace
	}

	var comp config.CompilerOverlay
	compSet := false
	if changed("compiler") {
		comp.Path = &f.compilerPath
		compSet = true
	}
	if changed("no-compiler") {
		enabled := !f.compilerDisabled
		comp.Enabled = &enabled
		compSet = true
	}
	if changed("include-path") {
		comp.IncludePaths = f.includePaths
		compSet = true
	}
	if changed("max-problems") && f.maxProblems > 0 {
		comp.MaxProblems = &f.maxProblems
		compSet = true
	}
	if compSet {
		o.Compiler = &comp
	}

	var ana config.AnalyzerOverlay
	anaSet := false
	if changed("analyzer") {
		ana.Path = &f.analyzerPath
		anaSet = true
	}
	if changed("no-analyzer") {
		enabled := !f.analyzerDisabled
		ana.Enabled = &enabled
		anaSet = true
	}
	if changed("analyzer-arg") {
		ana.Args = f.analyzerArgs
		anaSet = true
	}
	if changed("compile-commands-dir") {
		ana.CompileCommandsDir = &f.compileDBDir
		anaSet = true
	}
	if changed("fallback-flag") {
		ana.FallbackFlags = f.fallbackFlags
		anaSet = true
	}
	if changed("analyzer-diagnostics") {
		ana.DiagnosticsMode = &f.diagnosticsMode
		anaSet = true
	}
	if anaSet {
		o.Analyzer = &ana
	}
	return o
}

// baseSettings resolves defaults plus the user-level config file. The
// project layer is applied by the callers that know their root directory.
func baseSettings() config.Settings {
	defaults := config.Default()
	userOverlay, err := config.LoadUserOverlay()
	if err != nil {
		fmt.Fprintf(os.Stderr, "crest: user config ignored: %v\n", err)
		return defaults
	}
	return config.Merge(defaults, userOverlay)
}

// checkSettings is the full stack for one-shot commands: defaults, user
// config, the project file, then flags. With projectFile set the file must
// load; a file merely discovered from the working directory is warned about
// and skipped on parse failure so the remaining layers still apply.
func checkSettings(cmd *cobra.Command, flags *toolFlags, projectFile string) (config.Settings, error) {
	base := baseSettings()
	var projectOverlay config.Overlay
	if projectFile != "" {
		overlay, err := config.LoadProjectFile(projectFile)
		if err != nil {
			return base, fmt.Errorf("project config: %w", err)
		}
		projectOverlay = overlay
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return base, err
		}
		overlay, _, err := config.LoadProjectOverlay(cwd)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "crest: project config ignored: %v\n", err)
		} else {
			projectOverlay = overlay
		}
	}
	return config.MergeAll(base, projectOverlay, flags.overlay(cmd)), nil
}
