package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"crest/internal/version"
)

// errFindings marks a run that worked but found error-severity diagnostics.
// errUsage marks bad invocations. Both exit 1; operational failures exit 2.
var (
	errFindings = errors.New("diagnostics found")
	errUsage    = errors.New("invalid usage")
)

var rootCmd = &cobra.Command{
	Use:   "crest",
	Short: "Crest language tooling",
	Long:  `Crest editor tooling: a diagnostic checker and a language server that arbitrates between crestc and clangd`,
}

func main() {
	rootCmd.Version = version.Version
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
	cobra.OnInitialize(applyColorMode)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errFindings) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "crest: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func applyColorMode() {
	mode, err := rootCmd.PersistentFlags().GetString("color")
	if err != nil {
		return
	}
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

func colorEnabled() bool {
	return !color.NoColor
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
