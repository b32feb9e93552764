package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/exploopio/ropstat/pkg/core"
	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
	"github.com/exploopio/ropstat/pkg/metrics"
)

// Config configures an Aggregator.
type Config struct {
	// Workers is the number of summary files parsed concurrently (default: NumCPU).
	Workers int

	Logger  core.Logger
	Metrics metrics.Collector
}

// Aggregator sums summary files into category totals.
type Aggregator struct {
	workers int
	logger  core.Logger
	metrics metrics.Collector
}

// New creates an Aggregator.
func New(cfg *Config) *Aggregator {
	if cfg == nil {
		cfg = &Config{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	m := cfg.Metrics
	if m == nil {
		m = &metrics.NopCollector{}
	}
	return &Aggregator{
		workers: workers,
		logger:  core.OrNop(cfg.Logger),
		metrics: m,
	}
}

// AggregateFiles parses every summary in paths and returns their sum.
// The first missing or malformed file aborts the whole aggregation; no
// partial total is returned.
func (a *Aggregator) AggregateFiles(ctx context.Context, paths []string) (gadget.Counts, error) {
	var (
		mu    sync.Mutex
		total gadget.Counts
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, path := range paths {
		g.Go(func() error {
			a.logger.Info("Aggregating gadgets for file %s", path)

			c, err := ParseSummaryFile(ctx, path)
			if err != nil {
				return err
			}

			mu.Lock()
			total.Merge(c)
			mu.Unlock()

			a.metrics.CounterInc(metrics.SummariesAggregatedTotal.Name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return gadget.Counts{}, err
	}
	return total, nil
}

// ListSummaries returns the summary files directly inside dir, sorted by name.
func ListSummaries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.InputNotFound("aggregate.ListSummaries", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !gadget.IsSummary(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
