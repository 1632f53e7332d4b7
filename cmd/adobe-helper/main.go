// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the adobe-helper CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/adobe-helper/internal/logging"
	"github.com/pdiddy/adobe-helper/internal/secrets"
	"github.com/pdiddy/adobe-helper/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the adobe-helper CLI.
var rootCmd = &cobra.Command{
	Use:   "adobe-helper",
	Short: "Convert PDFs with Adobe's free online tools",
	Long: `adobe-helper converts PDF files to Word, Excel, or PowerPoint through
Adobe's free online conversion service. It keeps track of the free tier's
daily allowance and stops before it is exceeded.

API endpoints default to Adobe's public services and can be replaced by a
discovery file (discovered_endpoints.json) or ADOBE_HELPER_*_URL variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := s.Keys()
			sort.Strings(keys)
			logging.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(loadDotenv, initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./adobe-helper.yaml or ~/.config/adobe-helper/config.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
	pf.Bool("log-json", false, "write logs as JSON lines")
	pf.String("endpoints-file", "", "endpoint discovery file (default: search standard locations)")
	pf.String("usage-dir", "", "usage state directory (default ~/.adobe-helper)")
	pf.String("usage-backend", "", "usage store: file or sqlite (default file)")

	must(viper.BindPFlag("log.level", pf.Lookup("log-level")))
	must(viper.BindPFlag("log.json", pf.Lookup("log-json")))
	must(viper.BindPFlag("endpoints_file", pf.Lookup("endpoints-file")))
	must(viper.BindPFlag("usage.dir", pf.Lookup("usage-dir")))
	must(viper.BindPFlag("usage.backend", pf.Lookup("usage-backend")))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("usage.enabled", true)
	viper.SetDefault("usage.backend", string(types.UsageFile))
	viper.SetDefault("http.max_retries", 5)
	viper.SetDefault("convert.format", string(types.FormatWord))
	viper.SetDefault("convert.concurrency", 1)
}

// loadDotenv reads .env into the environment before config is resolved.
func loadDotenv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("adobe-helper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "adobe-helper"))
		}
	}

	viper.SetEnvPrefix("ADOBE_HELPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogging() {
	logging.Init(logConfig())
}

func logConfig() logging.Options {
	return logging.Options{
		Level:      viper.GetString("log.level"),
		JSON:       viper.GetBool("log.json"),
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
		Compress:   viper.GetBool("log.compress"),
	}
}

// usageConfig reads usage settings; disabled reflects --no-usage-tracking.
func usageConfig(disabled bool) types.UsageConfig {
	cfg := types.UsageConfig{
		Enabled: viper.GetBool("usage.enabled") && !disabled,
		Dir:     viper.GetString("usage.dir"),
		Backend: types.UsageBackend(viper.GetString("usage.backend")),
	}
	if viper.IsSet("usage.daily_limit") {
		limit := viper.GetInt("usage.daily_limit")
		cfg.DailyLimit = &limit
	}
	return cfg
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
