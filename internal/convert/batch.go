// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/adobe-helper/pkg/types"
)

// BatchOptions controls ConvertBatch.
type BatchOptions struct {
	Format types.OutputFormat

	// OutputDir collects outputs in one directory instead of beside inputs.
	OutputDir string

	// Overwrite reconverts inputs whose output already exists.
	Overwrite bool

	// Concurrency bounds parallel conversions (default 1).
	Concurrency int
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int

	// Outputs lists the files written, in completion order.
	Outputs []string
}

// Total returns the total number of inputs processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any inputs failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertBatch converts every input, printing per-file status to w and
// returning a summary. Individual failures do not stop the batch.
func (c *Client) ConvertBatch(ctx context.Context, inputs []string, opts BatchOptions, w io.Writer) BatchResult {
	if opts.Format == "" {
		opts.Format = types.FormatWord
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)
	report := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, args...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, input := range inputs {
		g.Go(func() error {
			name := filepath.Base(input)
			output := OutputPath(input, opts.OutputDir, opts.Format)

			if !opts.Overwrite {
				if _, err := os.Stat(output); err == nil {
					report("skipped:   %s (%s already exists)\n", name, output)
					mu.Lock()
					result.Skipped++
					mu.Unlock()
					return nil
				}
			}

			out, err := c.ConvertFile(gctx, input, output, opts.Format)
			if err != nil {
				report("failed:    %s (%v)\n", name, err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}

			report("converted: %s -> %s\n", name, out)
			mu.Lock()
			result.Converted++
			result.Outputs = append(result.Outputs, out)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}
