// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package devtasks

import "strings"

// Tool is one external command run over fixed paths.
type Tool struct {
	Name string
	Args []string

	// FailOnOutput treats any stdout as failure, for checkers such as
	// gofmt -l that list offending files but exit 0.
	FailOnOutput bool
}

func (t Tool) String() string {
	return strings.TrimSpace(t.Name + " " + strings.Join(t.Args, " "))
}

// Toolchain holds the commands behind the lint, format, typecheck, and test
// targets.
type Toolchain struct {
	Lint      Tool
	Format    Tool
	Typecheck Tool
	Test      Tool
}

// DefaultToolchain returns the checks for this repository.
func DefaultToolchain() Toolchain {
	return Toolchain{
		Lint:      Tool{Name: "golangci-lint", Args: []string{"run", "./..."}},
		Format:    Tool{Name: "gofmt", Args: []string{"-l", "cmd", "internal", "pkg", "magefiles", "examples"}, FailOnOutput: true},
		Typecheck: Tool{Name: "go", Args: []string{"vet", "./..."}},
		Test:      Tool{Name: "go", Args: []string{"test", "-cover", "./..."}},
	}
}
