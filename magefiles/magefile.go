//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for adobe-helper developer tooling.
// The Makefile targets delegate here.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/pdiddy/adobe-helper/internal/container"
	"github.com/pdiddy/adobe-helper/internal/devtasks"
)

const (
	binDir  = "bin"
	binName = "adobe-helper"
	cmdPkg  = "./cmd/adobe-helper"
)

// tasks returns the task runner wired to the detected container runtime.
// IMAGE, ADOBE_HELPER_USAGE_DIR, and REUSE_IMAGE adjust it.
// Targets that do not need a container still get docker as a placeholder.
func tasks(ctx context.Context, needRuntime bool) (*devtasks.Tasks, error) {
	rt := container.Docker()
	if needRuntime {
		detected, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		rt = detected
	}
	t := devtasks.New(rt, os.Stdout, os.Stderr)
	if img := os.Getenv("IMAGE"); img != "" {
		t.Image = img
	}
	if dir := os.Getenv("ADOBE_HELPER_USAGE_DIR"); dir != "" {
		t.UsageDir = dir
	}
	t.ReuseImage = os.Getenv("REUSE_IMAGE") != ""
	return t, nil
}

// fatal converts a task error into a mage exit with the tool's status.
func fatal(err error) error {
	if err == nil {
		return nil
	}
	return mg.Fatal(devtasks.ExitCode(err), err)
}

// DockerBuild builds the adobe-helper image from examples/adobe/Dockerfile.
func DockerBuild(ctx context.Context) error {
	t, err := tasks(ctx, true)
	if err != nil {
		return fatal(err)
	}
	return fatal(t.DockerBuild(ctx))
}

// DockerRun converts $PDF (default document.pdf) inside the container.
func DockerRun(ctx context.Context) error {
	t, err := tasks(ctx, true)
	if err != nil {
		return fatal(err)
	}
	return fatal(t.DockerRun(ctx, os.Getenv("PDF")))
}

// DockerRunDiscovery runs the container against ./docs discovery endpoints.
func DockerRunDiscovery(ctx context.Context) error {
	t, err := tasks(ctx, true)
	if err != nil {
		return fatal(err)
	}
	return fatal(t.DockerRunDiscovery(ctx))
}

// Lint runs golangci-lint.
func Lint(ctx context.Context) error { return runTool(ctx, (*devtasks.Tasks).Lint) }

// Format fails when gofmt reports unformatted files.
func Format(ctx context.Context) error { return runTool(ctx, (*devtasks.Tasks).Format) }

// Typecheck runs go vet.
func Typecheck(ctx context.Context) error { return runTool(ctx, (*devtasks.Tasks).Typecheck) }

// Test runs the test suite with coverage.
func Test(ctx context.Context) error { return runTool(ctx, (*devtasks.Tasks).Test) }

// CI runs lint, format, typecheck, and test, stopping at the first failure.
func CI(ctx context.Context) {
	mg.SerialCtxDeps(ctx, Lint, Format, Typecheck, Test)
}

func runTool(ctx context.Context, fn func(*devtasks.Tasks, context.Context) error) error {
	t, err := tasks(ctx, false)
	if err != nil {
		return fatal(err)
	}
	return fatal(fn(t, ctx))
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	ldflags := "-X main.version=" + version()
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// version describes the working tree for ldflags, or "dev" outside git.
func version() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || strings.TrimSpace(v) == "" {
		return "dev"
	}
	return strings.TrimSpace(v)
}

// Stats prints Go production and test line counts.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	return nil
}

// countGoLines counts non-blank lines in Go files, skipping _examples and
// hidden directories. testOnly selects _test.go files instead of the rest.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}
