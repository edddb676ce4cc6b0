package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"crest/internal/checker"
	"crest/internal/diag"
	"crest/internal/diagfmt"
)

var (
	checkFlags         toolFlags
	checkFormat        string
	checkJobs          int
	checkUI            string
	checkWrapHeader    bool
	checkExtraIncludes []string
	checkProjectFile   string
)

func init() {
	checkFlags.register(checkCmd)
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format (text|json)")
	checkCmd.Flags().IntVarP(&checkJobs, "jobs", "j", 0, "number of files checked in parallel (0 means GOMAXPROCS)")
	checkCmd.Flags().StringVar(&checkUI, "ui", "auto", "progress display (auto|on|off)")
	checkCmd.Flags().BoolVar(&checkWrapHeader, "wrap-header", false, "check headers through a synthetic translation unit")
	checkCmd.Flags().StringArrayVar(&checkExtraIncludes, "wrap-include", nil, "include prepended to wrapped headers (repeatable)")
	checkCmd.Flags().StringVar(&checkProjectFile, "project-config", "", "explicit crest.json to load instead of discovering one")
}

var checkCmd = &cobra.Command{
	Use:   "check [files or directories]",
	Short: "Run crestc and clangd diagnostics over sources",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	},
	SilenceUsage: true,
	RunE:         runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, err := checkSettings(cmd, &checkFlags, checkProjectFile)
	if err != nil {
		return err
	}
	format := strings.ToLower(checkFormat)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unsupported format %q (must be text or json)", errUsage, checkFormat)
	}
	mode, err := readUIMode(checkUI)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	opts := checker.Options{
		Settings:      settings,
		Jobs:          checkJobs,
		WrapHeader:    checkWrapHeader,
		ExtraIncludes: checkExtraIncludes,
	}
	if settings.Trace {
		opts.Logf = func(f string, a ...any) { fmt.Fprintf(os.Stderr, "check: "+f+"\n", a...) }
	}

	var report *checker.Report
	if format == "text" && shouldUseTUI(mode) {
		report, err = runCheckWithUI(cmd.Context(), "crest check", opts, args)
	} else {
		report, err = checker.Run(cmd.Context(), opts, args)
	}
	if err != nil {
		return err
	}

	all := collectDiagnostics(report)
	out := cmd.OutOrStdout()
	if format == "json" {
		if err := diagfmt.JSON(out, all, diagfmt.JSONOpts{Indent: true}); err != nil {
			return err
		}
	} else {
		diagfmt.Pretty(out, all, diagfmt.PrettyOpts{
			Color:      colorEnabled(),
			ShowSource: true,
			ShowOrigin: true,
		})
		printSummary(out, report, all)
	}

	for _, f := range report.Files {
		if f.ReadErr != nil {
			return fmt.Errorf("reading %s: %w", f.Path, f.ReadErr)
		}
	}
	if report.HasErrors() {
		return errFindings
	}
	return nil
}

func collectDiagnostics(report *checker.Report) []diag.Diagnostic {
	var all []diag.Diagnostic
	for _, f := range report.Files {
		all = append(all, f.Diagnostics...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].File != all[j].File {
			return all[i].File < all[j].File
		}
		if all[i].Line != all[j].Line {
			return all[i].Line < all[j].Line
		}
		return all[i].Col < all[j].Col
	})
	return all
}

func printSummary(out io.Writer, report *checker.Report, all []diag.Diagnostic) {
	errs, warns := 0, 0
	for _, d := range all {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
	}
	var sources []string
	if report.CompilerRan {
		sources = append(sources, "crestc")
	}
	if report.AnalyzerRan {
		sources = append(sources, "clangd")
	}
	fmt.Fprintf(out, "%d file(s) checked via %s: %d error(s), %d warning(s)\n",
		len(report.Files), strings.Join(sources, "+"), errs, warns)
}
