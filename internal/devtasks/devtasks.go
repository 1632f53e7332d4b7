// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package devtasks implements the developer workflow targets: building and
// running the adobe-helper image, and the lint, format, typecheck, and test
// checks that make up CI. The mage targets and the Makefile call into it.
package devtasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdiddy/adobe-helper/internal/container"
	"github.com/pdiddy/adobe-helper/internal/endpoints"
)

const (
	DefaultImage      = "adobe-helper"
	DefaultDockerfile = "examples/adobe/Dockerfile"
	DefaultPDF        = "document.pdf"

	// ContainerEndpointsFile is where the discovery run points the
	// application, inside the mounted docs directory.
	ContainerEndpointsFile = "/app/docs/discovery/discovered_endpoints.json"

	// ContainerUsageDir is the image's ADOBE_HELPER_USAGE_DIR.
	ContainerUsageDir = "/app/.adobe-helper"

	containerDocsDir   = "/app/docs"
	containerInputDir  = "/app/input"
	containerOutputDir = "/app/output"

	usageHint = "Usage: make docker-run PDF=/path/to/file.pdf"
)

// ErrInputNotFound is returned when the PDF handed to DockerRun does not exist.
var ErrInputNotFound = errors.New("input file not found")

// ExitError reports a failed step and the exit status to propagate.
type ExitError struct {
	Tool string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed with exit status %d: %v", e.Tool, e.Code, e.Err)
	}
	return fmt.Sprintf("%s failed with exit status %d", e.Tool, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the status to exit with for err: the tool's own status
// when known, otherwise 1. A nil error yields 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) && coded.ExitCode() > 0 {
		return coded.ExitCode()
	}
	return 1
}

func asExitError(tool string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return err
	}
	return &ExitError{Tool: tool, Code: ExitCode(err), Err: err}
}

// executor abstracts tool execution for testing.
type executor interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Tasks runs the workflow targets. The zero value is not usable; use New.
type Tasks struct {
	Image        string
	Dockerfile   string
	BuildContext string

	// DocsDir is mounted at /app/docs for the discovery run.
	DocsDir string

	// UsageDir holds the host's usage state and is mounted read-write at
	// /app/.adobe-helper so the daily limit carries across container runs.
	// Empty disables the mount.
	UsageDir string

	// ReuseImage skips the build when the image already exists locally.
	ReuseImage bool

	Toolchain Toolchain
	Runtime   container.Runtime

	Stdout io.Writer
	Stderr io.Writer

	exec executor
}

// New returns Tasks with the default image, Dockerfile, and Go toolchain,
// using rt for container steps.
func New(rt container.Runtime, stdout, stderr io.Writer) *Tasks {
	return &Tasks{
		Image:        DefaultImage,
		Dockerfile:   DefaultDockerfile,
		BuildContext: ".",
		DocsDir:      "docs",
		UsageDir:     defaultUsageDir(),
		Toolchain:    DefaultToolchain(),
		Runtime:      rt,
		Stdout:       stdout,
		Stderr:       stderr,
		exec:         osExecutor{},
	}
}

// defaultUsageDir is ~/.adobe-helper, the CLI's own default, or empty when
// the home directory is unknown.
func defaultUsageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, endpoints.SessionDir)
}

// ensureImage builds the image unless ReuseImage is set and the runtime
// already has it.
func (t *Tasks) ensureImage(ctx context.Context) error {
	if t.ReuseImage {
		if err := t.Runtime.ImageExists(ctx, t.Image); err == nil {
			fmt.Fprintf(t.Stdout, "[docker-build] reusing %s\n", t.Image)
			return nil
		}
	}
	return t.DockerBuild(ctx)
}

// usageMount returns the read-write mount for the host usage directory,
// creating it when missing. ok is false when no UsageDir is configured.
func (t *Tasks) usageMount() (container.Mount, bool, error) {
	if t.UsageDir == "" {
		return container.Mount{}, false, nil
	}
	abs, err := filepath.Abs(t.UsageDir)
	if err != nil {
		return container.Mount{}, false, fmt.Errorf("resolving %s: %w", t.UsageDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return container.Mount{}, false, fmt.Errorf("creating usage directory %s: %w", abs, err)
	}
	return container.Mount{Source: abs, Target: ContainerUsageDir}, true, nil
}

// DockerBuild builds the image from the configured Dockerfile.
func (t *Tasks) DockerBuild(ctx context.Context) error {
	fmt.Fprintf(t.Stdout, "[docker-build] %s (%s)\n", t.Image, t.Dockerfile)
	err := t.Runtime.Build(ctx, container.BuildOptions{
		Image:      t.Image,
		Dockerfile: t.Dockerfile,
		Context:    t.BuildContext,
		Stdout:     t.Stdout,
		Stderr:     t.Stderr,
	})
	return asExitError(t.Runtime.Name()+" build", err)
}

// DockerRun converts pdf inside the container. An empty pdf means
// document.pdf. The file is checked before anything is built or run; a
// missing file prints a usage hint and fails with status 1. The input is
// mounted read-only, its directory receives the output, and UsageDir keeps
// the free-tier count between runs.
func (t *Tasks) DockerRun(ctx context.Context, pdf string) error {
	if pdf == "" {
		pdf = DefaultPDF
	}
	info, err := os.Stat(pdf)
	if err != nil || info.IsDir() {
		fmt.Fprintf(t.Stderr, "Error: PDF file '%s' not found\n", pdf)
		fmt.Fprintln(t.Stderr, usageHint)
		return &ExitError{Tool: "docker-run", Code: 1, Err: fmt.Errorf("%w: %s", ErrInputNotFound, pdf)}
	}
	abs, err := filepath.Abs(pdf)
	if err != nil {
		return &ExitError{Tool: "docker-run", Code: 1, Err: fmt.Errorf("resolving %s: %w", pdf, err)}
	}

	if err := t.ensureImage(ctx); err != nil {
		return err
	}

	name := filepath.Base(abs)
	mounts := []container.Mount{
		{Source: abs, Target: containerInputDir + "/" + name, ReadOnly: true},
		{Source: filepath.Dir(abs), Target: containerOutputDir},
	}
	um, ok, err := t.usageMount()
	if err != nil {
		return &ExitError{Tool: "docker-run", Code: 1, Err: err}
	}
	if ok {
		mounts = append(mounts, um)
	}

	fmt.Fprintf(t.Stdout, "[docker-run] converting %s\n", abs)
	err = t.Runtime.Run(ctx, container.RunOptions{
		Image:  t.Image,
		Mounts: mounts,
		Args:   []string{"convert", containerInputDir + "/" + name, "--output-dir", containerOutputDir},
		Stdout: t.Stdout,
		Stderr: t.Stderr,
	})
	return asExitError(t.Runtime.Name()+" run", err)
}

// DockerRunDiscovery runs the image's default command with the docs
// directory mounted and ADOBE_HELPER_ENDPOINTS_FILE fixed to the discovery
// file inside it. Caller environment never changes that value.
func (t *Tasks) DockerRunDiscovery(ctx context.Context) error {
	if err := t.ensureImage(ctx); err != nil {
		return err
	}

	opts := container.RunOptions{
		Image:  t.Image,
		Env:    map[string]string{endpoints.EnvEndpointsFile: ContainerEndpointsFile},
		Stdout: t.Stdout,
		Stderr: t.Stderr,
	}
	if info, err := os.Stat(t.DocsDir); err == nil && info.IsDir() {
		abs, err := filepath.Abs(t.DocsDir)
		if err != nil {
			return &ExitError{Tool: "docker-run", Code: 1, Err: err}
		}
		opts.Mounts = []container.Mount{{Source: abs, Target: containerDocsDir, ReadOnly: true}}
	}

	fmt.Fprintf(t.Stdout, "[docker-run] %s=%s\n", endpoints.EnvEndpointsFile, ContainerEndpointsFile)
	return asExitError(t.Runtime.Name()+" run", t.Runtime.Run(ctx, opts))
}

// Lint runs the linter.
func (t *Tasks) Lint(ctx context.Context) error { return t.runTool(ctx, "lint", t.Toolchain.Lint) }

// Format checks formatting without rewriting files.
func (t *Tasks) Format(ctx context.Context) error {
	return t.runTool(ctx, "format", t.Toolchain.Format)
}

// Typecheck runs the static type checker.
func (t *Tasks) Typecheck(ctx context.Context) error {
	return t.runTool(ctx, "typecheck", t.Toolchain.Typecheck)
}

// Test runs the tests with coverage.
func (t *Tasks) Test(ctx context.Context) error { return t.runTool(ctx, "test", t.Toolchain.Test) }

// CI runs lint, format, typecheck, and test in order and stops at the first
// failure.
func (t *Tasks) CI(ctx context.Context) error {
	steps := []func(context.Context) error{t.Lint, t.Format, t.Typecheck, t.Test}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintln(t.Stdout, "[ci] all checks passed")
	return nil
}

func (t *Tasks) runTool(ctx context.Context, target string, tool Tool) error {
	fmt.Fprintf(t.Stdout, "[%s] %s\n", target, tool)

	stdout := t.Stdout
	var captured bytes.Buffer
	if tool.FailOnOutput {
		stdout = io.MultiWriter(t.Stdout, &captured)
	}

	if err := t.exec.Run(ctx, tool.Name, tool.Args, stdout, t.Stderr); err != nil {
		return asExitError(tool.Name, err)
	}
	if tool.FailOnOutput && len(bytes.TrimSpace(captured.Bytes())) > 0 {
		return &ExitError{Tool: tool.Name, Code: 1, Err: fmt.Errorf("%s reported files needing changes", target)}
	}
	return nil
}
