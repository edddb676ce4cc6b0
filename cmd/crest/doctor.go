package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crest/internal/checker"
)

var (
	doctorFlags  toolFlags
	doctorFormat string
)

func init() {
	doctorFlags.register(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "output format (text|json)")
}

var doctorCmd = &cobra.Command{
	Use:          "doctor",
	Short:        "Probe the toolchain the way an editor session would use it",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDoctor,
}

var (
	probeOKColor   = color.New(color.FgGreen, color.Bold)
	probeWarnColor = color.New(color.FgYellow, color.Bold)
	probeFailColor = color.New(color.FgRed, color.Bold)
)

func runDoctor(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(doctorFormat)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unsupported format %q (must be text or json)", errUsage, doctorFormat)
	}

	settings, err := checkSettings(cmd, &doctorFlags, "")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "crest: %v\n", err)
		settings = baseSettings()
	}

	report := checker.Doctor(cmd.Context(), settings)
	out := cmd.OutOrStdout()
	if format == "json" {
		if err := renderDoctorJSON(out, report); err != nil {
			return err
		}
	} else {
		for _, p := range report.Probes {
			fmt.Fprintf(out, "%s %-20s %s\n", probeBadge(p.Status), p.Name, p.Detail)
		}
	}
	if !report.Healthy() {
		return fmt.Errorf("no diagnostic source is usable")
	}
	return nil
}

type doctorProbeJSON struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func renderDoctorJSON(out io.Writer, report *checker.DoctorReport) error {
	payload := struct {
		Probes  []doctorProbeJSON `json:"probes"`
		Healthy bool              `json:"healthy"`
	}{Healthy: report.Healthy()}
	for _, p := range report.Probes {
		payload.Probes = append(payload.Probes, doctorProbeJSON{
			Name:   p.Name,
			Status: p.Status.String(),
			Detail: p.Detail,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func probeBadge(status checker.ProbeStatus) string {
	switch status {
	case checker.ProbeOK:
		return probeOKColor.Sprint("[ ok ]")
	case checker.ProbeWarn:
		return probeWarnColor.Sprint("[warn]")
	default:
		return probeFailColor.Sprint("[fail]")
	}
}
