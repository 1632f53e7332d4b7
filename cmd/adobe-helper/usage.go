// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/adobe-helper/internal/usage"
	"github.com/pdiddy/adobe-helper/pkg/types"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's free-tier conversion usage",
	Long: `Usage reports how many free conversions have been used today and how
many remain. Use --history for today's conversions, --all for every day the
store retains (the sqlite backend keeps past days), and --reset to clear
today's count.`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().Bool("reset", false, "clear today's usage")
	usageCmd.Flags().Bool("history", false, "list today's conversions")
	usageCmd.Flags().Bool("all", false, "list conversions for every retained day")
	usageCmd.Flags().String("format", "text", "output format: text or yaml")

	rootCmd.AddCommand(usageCmd)
}

// usageReport is the yaml shape of the usage command's output.
type usageReport struct {
	Summary types.UsageSummary       `yaml:"summary"`
	History []types.ConversionRecord `yaml:"history,omitempty"`
	Days    []types.DailyUsage       `yaml:"days,omitempty"`
}

func runUsage(cmd *cobra.Command, args []string) error {
	reset, _ := cmd.Flags().GetBool("reset")
	history, _ := cmd.Flags().GetBool("history")
	all, _ := cmd.Flags().GetBool("all")
	format, _ := cmd.Flags().GetString("format")

	tracker, err := usage.Open(usageConfig(false))
	if err != nil {
		return err
	}
	defer tracker.Close()

	if reset {
		if err := tracker.Reset(); err != nil {
			return err
		}
	}

	report := usageReport{Summary: tracker.Summary()}
	if history {
		report.History = tracker.History()
	}
	if all {
		days, err := tracker.Archive()
		if err != nil {
			return err
		}
		report.Days = days
	}

	switch format {
	case "yaml":
		return writeYAML(cmd.OutOrStdout(), report)
	case "text", "":
		writeUsageText(cmd.OutOrStdout(), tracker.String(), report)
		return nil
	default:
		return fmt.Errorf("unknown format %q: use text or yaml", format)
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func writeUsageText(w io.Writer, line string, report usageReport) {
	fmt.Fprintf(w, "%s (%s)\n", line, report.Summary.Date)
	for _, rec := range report.History {
		fmt.Fprintf(w, "  %s  %s\n", rec.Timestamp.Format(time.TimeOnly), displayName(rec.Filename))
	}
	for _, day := range report.Days {
		fmt.Fprintf(w, "\n%s: %d conversion(s)\n", day.Date, day.Count)
		for _, rec := range day.Conversions {
			fmt.Fprintf(w, "  %s  %s\n", rec.Timestamp.Format(time.TimeOnly), displayName(rec.Filename))
		}
	}
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
