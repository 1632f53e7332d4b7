// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package devtasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/adobe-helper/internal/container"
)

// fakeRuntime records builds and runs.
type fakeRuntime struct {
	builds   []container.BuildOptions
	runs     []container.RunOptions
	buildErr error
	runErr   error
	imageErr error
	checked  []string
}

func (f *fakeRuntime) Name() string { return "docker" }
func (f *fakeRuntime) Available(context.Context) bool { return true }
func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	f.checked = append(f.checked, image)
	return f.imageErr
}
func (f *fakeRuntime) Build(_ context.Context, o container.BuildOptions) error {
	f.builds = append(f.builds, o)
	return f.buildErr
}
func (f *fakeRuntime) Run(_ context.Context, o container.RunOptions) error {
	f.runs = append(f.runs, o)
	return f.runErr
}

// codedError mimics *exec.ExitError.
type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e codedError) ExitCode() int { return e.code }

// fakeExecutor records tool invocations and fails or prints per tool name.
type fakeExecutor struct {
	calls  []string
	fail   map[string]int
	output map[string]string
}

func (f *fakeExecutor) Run(_ context.Context, name string, args []string, stdout, _ io.Writer) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	if out := f.output[name]; out != "" {
		io.WriteString(stdout, out)
	}
	if code, ok := f.fail[name]; ok {
		return codedError{code: code}
	}
	return nil
}

func newTestTasks() (*Tasks, *fakeRuntime, *fakeExecutor, *bytes.Buffer) {
	rt := &fakeRuntime{}
	var out bytes.Buffer
	tasks := New(rt, &out, &out)
	tasks.UsageDir = ""
	tasks.Toolchain = Toolchain{
		Lint:      Tool{Name: "lint"},
		Format:    Tool{Name: "format", FailOnOutput: true},
		Typecheck: Tool{Name: "typecheck"},
		Test:      Tool{Name: "test"},
	}
	exec := &fakeExecutor{}
	tasks.exec = exec
	return tasks, rt, exec, &out
}

func TestDockerBuild(t *testing.T) {
	tasks, rt, _, _ := newTestTasks()

	require.NoError(t, tasks.DockerBuild(context.Background()))

	require.Len(t, rt.builds, 1)
	assert.Equal(t, "adobe-helper", rt.builds[0].Image)
	assert.Equal(t, "examples/adobe/Dockerfile", rt.builds[0].Dockerfile)
}

func TestDockerBuildPropagatesExitCode(t *testing.T) {
	tasks, rt, _, _ := newTestTasks()
	rt.buildErr = fmt.Errorf("building: %w", codedError{code: 3})

	err := tasks.DockerBuild(context.Background())

	assert.Equal(t, 3, ExitCode(err))
}

func TestDockerRunMissingDefaultPDF(t *testing.T) {
	t.Chdir(t.TempDir())
	tasks, rt, _, out := newTestTasks()

	err := tasks.DockerRun(context.Background(), "")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInputNotFound)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, out.String(), "not found")
	assert.Contains(t, out.String(), "document.pdf")
	assert.Empty(t, rt.builds, "nothing should be built for a missing input")
	assert.Empty(t, rt.runs)
}

func TestDockerRunDirectoryIsNotAPDF(t *testing.T) {
	tasks, rt, _, _ := newTestTasks()

	err := tasks.DockerRun(context.Background(), t.TempDir())

	assert.ErrorIs(t, err, ErrInputNotFound)
	assert.Empty(t, rt.runs)
}

func TestDockerRunMountsResolvedPath(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7"), 0o644))
	usageDir := filepath.Join(t.TempDir(), ".adobe-helper")
	tasks, rt, _, _ := newTestTasks()
	tasks.UsageDir = usageDir

	require.NoError(t, tasks.DockerRun(context.Background(), pdf))

	require.Len(t, rt.builds, 1, "docker-run depends on docker-build")
	require.Len(t, rt.runs, 1)
	args := strings.Join(container.RunArgs(rt.runs[0]), " ")
	assert.Contains(t, args, pdf+":/app/input/report.pdf:ro")
	assert.Contains(t, args, dir+":/app/output")
	assert.Contains(t, rt.runs[0].Mounts, container.Mount{Source: usageDir, Target: "/app/.adobe-helper"},
		"usage state must outlive the --rm container")
	assert.DirExists(t, usageDir)
	assert.True(t, strings.HasSuffix(args, "adobe-helper convert /app/input/report.pdf --output-dir /app/output"), args)
}

func TestDockerRunRelativePathIsResolved(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("document.pdf", []byte("%PDF-1.7"), 0o644))
	tasks, rt, _, _ := newTestTasks()

	require.NoError(t, tasks.DockerRun(context.Background(), ""))

	require.Len(t, rt.runs, 1)
	abs, err := filepath.Abs("document.pdf")
	require.NoError(t, err)
	assert.Equal(t, abs, rt.runs[0].Mounts[0].Source)
}

func TestDockerRunWithoutUsageDir(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7"), 0o644))
	tasks, rt, _, _ := newTestTasks()

	require.NoError(t, tasks.DockerRun(context.Background(), pdf))

	require.Len(t, rt.runs, 1)
	for _, m := range rt.runs[0].Mounts {
		assert.NotEqual(t, ContainerUsageDir, m.Target)
	}
}

func TestDefaultUsageDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tasks := New(&fakeRuntime{}, io.Discard, io.Discard)

	assert.Equal(t, filepath.Join(home, ".adobe-helper"), tasks.UsageDir)
}

func TestReuseImage(t *testing.T) {
	tests := []struct {
		name       string
		reuse      bool
		imageErr   error
		wantBuilds int
	}{
		{"always builds by default", false, nil, 1},
		{"reuses an existing image", true, nil, 0},
		{"builds a missing image", true, errors.New("no such image"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, rt, _, _ := newTestTasks()
			tasks.ReuseImage = tt.reuse
			rt.imageErr = tt.imageErr

			require.NoError(t, tasks.DockerRunDiscovery(context.Background()))

			assert.Len(t, rt.builds, tt.wantBuilds)
			assert.Len(t, rt.runs, 1)
			if tt.reuse {
				assert.Equal(t, []string{"adobe-helper"}, rt.checked)
			} else {
				assert.Empty(t, rt.checked)
			}
		})
	}
}

func TestDockerRunSkipsRunWhenBuildFails(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7"), 0o644))
	tasks, rt, _, _ := newTestTasks()
	rt.buildErr = errors.New("no daemon")

	err := tasks.DockerRun(context.Background(), pdf)

	require.Error(t, err)
	assert.Empty(t, rt.runs)
}

func TestDockerRunDiscoverySetsLiteralEndpointsFile(t *testing.T) {
	t.Setenv("ADOBE_HELPER_ENDPOINTS_FILE", "/somewhere/else.json")
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join("docs", "discovery"), 0o755))
	tasks, rt, _, _ := newTestTasks()

	require.NoError(t, tasks.DockerRunDiscovery(context.Background()))

	require.Len(t, rt.builds, 1)
	require.Len(t, rt.runs, 1)
	assert.Equal(t, map[string]string{
		"ADOBE_HELPER_ENDPOINTS_FILE": "/app/docs/discovery/discovered_endpoints.json",
	}, rt.runs[0].Env)
	require.Len(t, rt.runs[0].Mounts, 1)
	assert.Equal(t, "/app/docs", rt.runs[0].Mounts[0].Target)
	assert.True(t, rt.runs[0].Mounts[0].ReadOnly)
}

func TestCIRunsInOrder(t *testing.T) {
	tasks, _, exec, out := newTestTasks()

	require.NoError(t, tasks.CI(context.Background()))

	assert.Equal(t, []string{"lint", "format", "typecheck", "test"}, exec.calls)
	assert.Contains(t, out.String(), "all checks passed")
}

func TestCIStopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name      string
		fail      map[string]int
		output    map[string]string
		wantCalls []string
		wantCode  int
	}{
		{
			name:      "lint fails",
			fail:      map[string]int{"lint": 2},
			wantCalls: []string{"lint"},
			wantCode:  2,
		},
		{
			name:      "typecheck fails",
			fail:      map[string]int{"typecheck": 1, "test": 1},
			wantCalls: []string{"lint", "format", "typecheck"},
			wantCode:  1,
		},
		{
			name:      "format lists files",
			output:    map[string]string{"format": "internal/usage/tracker.go\n"},
			wantCalls: []string{"lint", "format"},
			wantCode:  1,
		},
		{
			name:      "test fails last",
			fail:      map[string]int{"test": 4},
			wantCalls: []string{"lint", "format", "typecheck", "test"},
			wantCode:  4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, _, exec, _ := newTestTasks()
			exec.fail = tt.fail
			exec.output = tt.output

			err := tasks.CI(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, exec.calls)
			assert.Equal(t, tt.wantCode, ExitCode(err))
		})
	}
}

func TestDefaultToolchain(t *testing.T) {
	tc := DefaultToolchain()
	assert.Equal(t, "golangci-lint run ./...", tc.Lint.String())
	assert.True(t, tc.Format.FailOnOutput)
	assert.Equal(t, "go vet ./...", tc.Typecheck.String())
	assert.Equal(t, "go test -cover ./...", tc.Test.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 7, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Tool: "x", Code: 7})))
}
