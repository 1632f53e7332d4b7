// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/adobe-helper/internal/endpoints"
	"github.com/pdiddy/adobe-helper/internal/usage"
	"github.com/pdiddy/adobe-helper/pkg/types"
)

const convertedContent = "PK\x03\x04 converted"

// resetFlags restores every flag in the tree to its default so one
// invocation's flags do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the CLI with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points the CLI at a scratch working directory, home, and usage
// directory, and clears endpoint overrides. It returns the usage directory.
func isolate(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	usageDir := filepath.Join(t.TempDir(), "usage")
	t.Setenv("ADOBE_HELPER_USAGE_DIR", usageDir)
	t.Setenv(endpoints.EnvEndpointsFile, "")
	for _, k := range endpoints.Keys {
		t.Setenv(endpoints.EnvVar(k), "")
	}
	return usageDir
}

// fakeService answers the session, token, and document API calls and counts
// every request it sees.
func fakeService(t *testing.T) *atomic.Int32 {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("GET /page", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html></html>")
	})
	mux.HandleFunc("POST /ims", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "guest"})
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"asset_id": "asset-1"})
	})
	mux.HandleFunc("POST /convert", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "done", "download_uri": srv.URL + "/files/job-1"})
	})
	mux.HandleFunc("GET /files/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, convertedContent)
	})

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	t.Setenv(endpoints.EnvVar(endpoints.KeyUpload), srv.URL+"/upload")
	t.Setenv(endpoints.EnvVar(endpoints.KeyConversion), srv.URL+"/convert")
	t.Setenv(endpoints.EnvVar(endpoints.KeyStatus), srv.URL+"/status")
	t.Setenv(endpoints.EnvVar(endpoints.KeyDownload), srv.URL+"/download")
	t.Setenv("ADOBE_HELPER_CONVERT_SESSION_PAGE", srv.URL+"/page")
	t.Setenv("ADOBE_HELPER_CONVERT_TOKEN_URL", srv.URL+"/ims")
	t.Setenv("ADOBE_HELPER_CONVERT_POLL_INTERVAL", "1ms")
	return &hits
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))
	return path
}

func TestConvertCommand(t *testing.T) {
	usageDir := isolate(t)
	fakeService(t)
	pdf := writeInput(t, "report.pdf")

	out, err := execute(t, "convert", pdf)
	require.NoError(t, err)

	docx := strings.TrimSuffix(pdf, ".pdf") + ".docx"
	data, err := os.ReadFile(docx)
	require.NoError(t, err)
	assert.Equal(t, convertedContent, string(data))
	assert.Contains(t, out, "converted: report.pdf")
	assert.Contains(t, out, "Usage: 1/2")
	assert.FileExists(t, filepath.Join(usageDir, usage.UsageFile))
}

func TestConvertCommandSingleOutput(t *testing.T) {
	isolate(t)
	fakeService(t)
	pdf := writeInput(t, "report.pdf")
	target := filepath.Join(t.TempDir(), "slides.pptx")

	out, err := execute(t, "convert", pdf, "--output", target, "--format", "ppt")
	require.NoError(t, err)

	assert.FileExists(t, target)
	assert.Contains(t, out, "-> "+target)
}

func TestConvertCommandRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"output with several inputs", []string{"convert", "a.pdf", "b.pdf", "--output", "x.docx"}, "single input"},
		{"unknown format", []string{"convert", "a.pdf", "--format", "pdf"}, "unknown format"},
		{"no inputs", []string{"convert"}, "requires at least 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usageDir := isolate(t)
			hits := fakeService(t)

			_, err := execute(t, tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Zero(t, hits.Load(), "nothing is sent for rejected arguments")
			assert.NoDirExists(t, usageDir)
		})
	}
}

func TestConvertCommandRefusesWhenLimitReached(t *testing.T) {
	isolate(t)
	hits := fakeService(t)
	t.Setenv("ADOBE_HELPER_USAGE_DAILY_LIMIT", "0")
	pdf := writeInput(t, "report.pdf")

	_, err := execute(t, "convert", pdf)

	require.ErrorIs(t, err, usage.ErrDailyLimitReached)
	assert.Zero(t, hits.Load(), "the limit is checked before contacting the service")
	assert.NoFileExists(t, strings.TrimSuffix(pdf, ".pdf")+".docx")
}

func TestConvertCommandWithoutUsageTracking(t *testing.T) {
	usageDir := isolate(t)
	fakeService(t)
	t.Setenv("ADOBE_HELPER_USAGE_DAILY_LIMIT", "0")
	pdf := writeInput(t, "report.pdf")

	out, err := execute(t, "convert", pdf, "--no-usage-tracking")
	require.NoError(t, err)

	assert.FileExists(t, strings.TrimSuffix(pdf, ".pdf")+".docx")
	assert.NotContains(t, out, "Usage:")
	assert.NoFileExists(t, filepath.Join(usageDir, usage.UsageFile))
}

func seedUsage(t *testing.T, cfg types.UsageConfig, files ...string) {
	t.Helper()
	tr, err := usage.Open(cfg)
	require.NoError(t, err)
	defer tr.Close()
	for _, f := range files {
		require.NoError(t, tr.Increment(f))
	}
}

func TestUsageCommandHistoryAndReset(t *testing.T) {
	usageDir := isolate(t)
	seedUsage(t, types.UsageConfig{Dir: usageDir}, "seed.pdf")

	out, err := execute(t, "usage", "--history")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: 1/2")
	assert.Contains(t, out, "seed.pdf")

	out, err = execute(t, "usage", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: 0/2")

	out, err = execute(t, "usage", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "count: 0")
}

func TestUsageCommandAllDays(t *testing.T) {
	usageDir := isolate(t)
	t.Setenv("ADOBE_HELPER_USAGE_BACKEND", "sqlite")

	require.NoError(t, os.MkdirAll(usageDir, 0o755))
	store, err := usage.NewSQLiteStore(usageDir)
	require.NoError(t, err)
	require.NoError(t, store.Save(types.DailyUsage{
		Date:        "2026-01-05",
		Count:       1,
		Conversions: []types.ConversionRecord{{ID: "old", Filename: "january.pdf"}},
	}))
	require.NoError(t, store.Close())
	seedUsage(t, types.UsageConfig{Dir: usageDir, Backend: types.UsageSQLite}, "today.pdf")

	out, err := execute(t, "usage", "--all")
	require.NoError(t, err)

	assert.Contains(t, out, "2026-01-05: 1 conversion(s)")
	assert.Contains(t, out, "january.pdf")
	assert.Contains(t, out, "today.pdf")
}

func TestUsageCommandUnknownFormat(t *testing.T) {
	isolate(t)

	_, err := execute(t, "usage", "--format", "xml")

	assert.ErrorContains(t, err, "unknown format")
}

func writeDiscoveryFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "discovered_endpoints.json")
	body := `{"endpoints": {"upload": {"url": "https://files.example.test/up"}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEndpointsShowFromFlag(t *testing.T) {
	isolate(t)
	path := writeDiscoveryFile(t)

	out, err := execute(t, "endpoints", "show", "--endpoints-file", path, "--candidates")
	require.NoError(t, err)

	assert.Contains(t, out, "https://files.example.test/up")
	assert.Contains(t, out, "Discovery file: "+path)
	assert.Contains(t, out, "Discovery files searched:\n  "+path+"\n")
}

func TestEndpointsShowFromEnvironment(t *testing.T) {
	isolate(t)
	path := writeDiscoveryFile(t)
	t.Setenv(endpoints.EnvEndpointsFile, path)
	t.Setenv(endpoints.EnvVar(endpoints.KeyStatus), "https://status.example.test")

	out, err := execute(t, "endpoints", "show", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Upload  string            `json:"upload"`
		Status  string            `json:"status"`
		File    string            `json:"file"`
		Sources map[string]string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "https://files.example.test/up", got.Upload)
	assert.Equal(t, "https://status.example.test", got.Status)
	assert.Equal(t, path, got.File)
	assert.Equal(t, "env", got.Sources["status"])
	assert.Equal(t, "file", got.Sources["upload"])
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.Equal(t, "adobe-helper dev\n", out)
}
