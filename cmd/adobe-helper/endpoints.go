// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/adobe-helper/internal/endpoints"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Inspect API endpoint resolution",
}

var endpointsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved API endpoints and where each came from",
	Long: `Show resolves the upload, conversion, status, and download endpoints the
same way convert does: built-in defaults, then the first discovery file that
provides any endpoint, then ADOBE_HELPER_*_URL overrides.`,
	RunE: runEndpointsShow,
}

func init() {
	endpointsShowCmd.Flags().String("format", "text", "output format: text, yaml, or json")
	endpointsShowCmd.Flags().Bool("candidates", false, "also list the discovery file locations searched")

	endpointsCmd.AddCommand(endpointsShowCmd)
	rootCmd.AddCommand(endpointsCmd)
}

func runEndpointsShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	showCandidates, _ := cmd.Flags().GetBool("candidates")

	explicit := viper.GetString("endpoints_file")
	res := endpoints.Resolve(explicit)

	out := cmd.OutOrStdout()
	if err := writeResolution(out, res, format); err != nil {
		return err
	}
	if showCandidates {
		fmt.Fprintln(out, "\nDiscovery files searched:")
		for _, c := range endpoints.Candidates(explicit) {
			fmt.Fprintf(out, "  %s\n", c)
		}
	}
	return nil
}

func writeResolution(w io.Writer, res endpoints.Resolution, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text", "":
		for _, k := range endpoints.Keys {
			fmt.Fprintf(w, "%-11s %-8s %s\n", k, res.Sources[k], res.Get(k))
		}
		if res.File != "" {
			fmt.Fprintf(w, "\nDiscovery file: %s\n", res.File)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q: use text, yaml, or json", format)
	}
}
