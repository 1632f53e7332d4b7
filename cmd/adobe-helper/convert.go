// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/adobe-helper/internal/convert"
	"github.com/pdiddy/adobe-helper/internal/endpoints"
	"github.com/pdiddy/adobe-helper/internal/secrets"
	"github.com/pdiddy/adobe-helper/internal/usage"
	"github.com/pdiddy/adobe-helper/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdfs...]",
	Short: "Convert PDF files to Word, Excel, or PowerPoint",
	Long: `Convert uploads each PDF to Adobe's online converter, waits for the
conversion job, and downloads the result next to the input (or into
--output-dir). Inputs whose output already exists are skipped unless
--overwrite is set.

Each successful conversion counts against the free tier's daily allowance;
the command refuses to start new conversions once it is used up.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.String("format", "", "output format: word, excel, or ppt (default word)")
	f.StringP("output", "o", "", "output file (single input only)")
	f.String("output-dir", "", "directory for converted files (default: next to each input)")
	f.Bool("overwrite", false, "reconvert inputs whose output already exists")
	f.Int("concurrency", 0, "parallel conversions in a batch (default 1)")
	f.Duration("timeout", 0, "HTTP request timeout (default 60s)")
	f.Duration("poll-interval", 0, "delay between job status checks (default 2s)")
	f.Duration("job-timeout", 0, "maximum time for one conversion (default 5m)")
	f.String("access-token", "", "IMS bearer token (default: .secrets/adobe-access-token or a guest token)")
	f.Bool("no-usage-tracking", false, "do not track or enforce the daily free-tier limit")

	must(viper.BindPFlag("convert.format", f.Lookup("format")))
	must(viper.BindPFlag("convert.output_dir", f.Lookup("output-dir")))
	must(viper.BindPFlag("convert.concurrency", f.Lookup("concurrency")))
	must(viper.BindPFlag("convert.poll_interval", f.Lookup("poll-interval")))
	must(viper.BindPFlag("convert.job_timeout", f.Lookup("job-timeout")))
	must(viper.BindPFlag("http.timeout", f.Lookup("timeout")))
	must(viper.BindPFlag("access_token", f.Lookup("access-token")))

	rootCmd.AddCommand(convertCmd)
}

// conversionConfig assembles conversion settings from flags, config, and
// secrets.
func conversionConfig(cmd *cobra.Command) types.ConversionConfig {
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	return types.ConversionConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    viper.GetDuration("http.timeout"),
			UserAgent:  viper.GetString("http.user_agent"),
			MaxRetries: viper.GetInt("http.max_retries"),
		},
		Format:       types.OutputFormat(viper.GetString("convert.format")),
		OutputDir:    viper.GetString("convert.output_dir"),
		Overwrite:    overwrite,
		Concurrency:  viper.GetInt("convert.concurrency"),
		PollInterval: viper.GetDuration("convert.poll_interval"),
		JobTimeout:   viper.GetDuration("convert.job_timeout"),
		SessionPage:  viper.GetString("convert.session_page"),
		TokenURL:     viper.GetString("convert.token_url"),
		AccessToken:  loadedSecrets.Get(secrets.AdobeAccessToken, viper.GetString("access_token")),
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := conversionConfig(cmd)
	if !cfg.Format.Valid() {
		return fmt.Errorf("unknown format %q: use word, excel, or ppt", cfg.Format)
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "" && len(args) > 1 {
		return errors.New("--output applies to a single input; use --output-dir for several")
	}
	noTracking, _ := cmd.Flags().GetBool("no-usage-tracking")
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var quota convert.Quota
	ucfg := usageConfig(noTracking)
	if ucfg.Enabled {
		tracker, err := usage.Open(ucfg)
		if err != nil {
			return err
		}
		defer tracker.Close()
		if !tracker.CanConvert() {
			return fmt.Errorf("%w (%s)", usage.ErrDailyLimitReached, tracker)
		}
		quota = tracker
		defer func() { fmt.Fprintln(out, tracker) }()
	}

	res := endpoints.Resolve(viper.GetString("endpoints_file"))
	client, err := convert.New(convert.ConfigFrom(res.Endpoints, cfg), quota)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Initialize(ctx); err != nil {
		return err
	}

	if output != "" {
		written, err := client.ConvertFile(ctx, args[0], output, cfg.Format)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "converted: %s -> %s\n", args[0], written)
		return nil
	}

	result := client.ConvertBatch(ctx, args, convert.BatchOptions{
		Format:      cfg.Format,
		OutputDir:   cfg.OutputDir,
		Overwrite:   cfg.Overwrite,
		Concurrency: cfg.Concurrency,
	}, out)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}
