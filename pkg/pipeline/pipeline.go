// Package pipeline runs the batch stages that turn a directory of binaries
// into gadget listings and a directory of listings into category summaries.
//
//	binaries/<set>/*  --Generate-->  gadgets/<set>/*.gdt  --Categorize-->  *.gdt.cnt
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/exploopio/ropstat/pkg/compress"
	"github.com/exploopio/ropstat/pkg/core"
	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
	"github.com/exploopio/ropstat/pkg/metrics"
	"github.com/exploopio/ropstat/pkg/retry"
	"github.com/exploopio/ropstat/pkg/scanners/ropgadget"
)

// Config configures a Pipeline.
type Config struct {
	// Runner produces gadget listings. Required for Generate.
	Runner ropgadget.Runner

	// Classifier categorizes listing lines (default: substring rules).
	Classifier *gadget.Classifier

	// Compressor compresses generated listings. Nil writes them as-is.
	Compressor *compress.Compressor

	// GadgetsOnly strips everything but gadget lines from generated listings.
	GadgetsOnly bool

	// Workers is the number of files processed concurrently (default: NumCPU).
	Workers int

	// LaunchRate caps gadget finder launches per second (0 = unlimited).
	LaunchRate float64

	// Retries is how often a failed gadget finder run is repeated.
	Retries int

	// Backoff spaces out retries (nil = retry.DefaultBackoffConfig).
	Backoff *retry.BackoffConfig

	Logger  core.Logger
	Metrics metrics.Collector
}

// Stats summarizes one batch run.
type Stats struct {
	Files    int           `json:"files"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Pipeline runs generation and categorization batches.
type Pipeline struct {
	runner      ropgadget.Runner
	classifier  *gadget.Classifier
	compressor  *compress.Compressor
	gadgetsOnly bool
	workers     int
	limiter     *rate.Limiter
	retries     int
	backoff     *retry.BackoffConfig
	logger      core.Logger
	metrics     metrics.Collector
}

// New creates a Pipeline.
func New(cfg *Config) *Pipeline {
	if cfg == nil {
		cfg = &Config{}
	}

	p := &Pipeline{
		runner:      cfg.Runner,
		classifier:  cfg.Classifier,
		compressor:  cfg.Compressor,
		gadgetsOnly: cfg.GadgetsOnly,
		workers:     cfg.Workers,
		retries:     cfg.Retries,
		backoff:     cfg.Backoff,
		logger:      core.OrNop(cfg.Logger),
		metrics:     cfg.Metrics,
	}
	if p.classifier == nil {
		p.classifier = gadget.NewClassifier()
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	if p.metrics == nil {
		p.metrics = &metrics.NopCollector{}
	}

	// Setup rate limiter if configured
	if cfg.LaunchRate > 0 {
		burst := int(cfg.LaunchRate)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), burst)
	}

	return p
}

// Generate runs the gadget finder on every regular file in binDir and writes
// one listing per binary into gadgetDir. A binary the finder fails on is
// logged and counted in Stats.Failed; the batch carries on with the rest.
func (p *Pipeline) Generate(ctx context.Context, binDir, gadgetDir string) (*Stats, error) {
	const op = "pipeline.Generate"
	start := time.Now()

	if p.runner == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "no gadget finder configured")
	}

	binaries, err := listFiles(binDir, func(string) bool { return true })
	if err != nil {
		return nil, errors.InputNotFound(op, binDir, err)
	}
	if err := os.MkdirAll(gadgetDir, 0755); err != nil {
		return nil, errors.E(errors.KindInternal, op, errors.At(gadgetDir, 0), err)
	}

	set := filepath.Base(binDir)
	var failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, name := range binaries {
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return err
				}
			}

			out, err := p.generateOne(ctx, filepath.Join(binDir, name), filepath.Join(gadgetDir, gadget.ListingName(name)))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				p.logger.Error("Gadget generation failed for %s binary %s: %v", set, name, err)
				return nil
			}

			p.logger.Info("Gadget file created for %s binary %s.", set, name)
			p.logger.Debug("Wrote %s", out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Stats{
		Files:    len(binaries),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}, nil
}

func (p *Pipeline) generateOne(ctx context.Context, binary, listing string) (string, error) {
	var data []byte
	policy := retry.Policy{
		Retries:   p.retries,
		Backoff:   p.backoff,
		Retryable: func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error, delay time.Duration) {
			p.metrics.CounterInc(metrics.ToolRunsTotal.Name, "status", "retry")
			p.logger.Warn("Retrying %s (retry %d of %d) in %s: %v", filepath.Base(binary), attempt, p.retries, delay.Round(time.Millisecond), err)
		},
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		timer := metrics.NewTimer(p.metrics, metrics.ToolRunDuration.Name)
		defer timer.ObserveDuration()

		var err error
		data, err = p.runner.Run(ctx, binary)
		return err
	})
	if err != nil {
		p.metrics.CounterInc(metrics.ToolRunsTotal.Name, "status", "failure")
		return "", err
	}
	p.metrics.CounterInc(metrics.ToolRunsTotal.Name, "status", "success")

	if p.gadgetsOnly {
		parsed, err := ropgadget.ParseListingBytes(data)
		if err != nil {
			return "", fmt.Errorf("parse listing: %w", err)
		}
		var buf bytes.Buffer
		if err := parsed.WriteGadgets(&buf); err != nil {
			return "", err
		}
		data = buf.Bytes()
	}

	if p.compressor != nil && p.compressor.Algorithm() != compress.AlgorithmNone {
		out, stats, err := p.compressor.WriteListing(listing, data)
		if err != nil {
			return "", err
		}
		p.logger.Debug("Compressed %s: %d -> %d bytes", out, stats.OriginalSize, stats.CompressedSize)
		return out, nil
	}

	if err := os.WriteFile(listing, data, 0644); err != nil {
		return "", fmt.Errorf("write listing: %w", err)
	}
	return listing, nil
}

// Categorize classifies every gadget listing in gadgetDir, compressed or
// not, and writes <listing>.cnt next to it. Listing foo.gdt.zst produces
// foo.gdt.cnt. The first failure aborts the batch.
func (p *Pipeline) Categorize(ctx context.Context, gadgetDir string) (*Stats, error) {
	const op = "pipeline.Categorize"
	start := time.Now()

	listings, err := listFiles(gadgetDir, gadget.IsListing)
	if err != nil {
		return nil, errors.InputNotFound(op, gadgetDir, err)
	}

	set := filepath.Base(gadgetDir)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, name := range listings {
		g.Go(func() error {
			if err := p.categorizeOne(ctx, gadgetDir, name); err != nil {
				p.metrics.CounterInc(metrics.FilesClassifiedTotal.Name, "status", "failure")
				return err
			}
			p.metrics.CounterInc(metrics.FilesClassifiedTotal.Name, "status", "success")
			p.logger.Info("%s %s gadget categorized.", set, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Stats{
		Files:    len(listings),
		Duration: time.Since(start),
	}, nil
}

func (p *Pipeline) categorizeOne(ctx context.Context, dir, name string) error {
	const op = "pipeline.Categorize"
	path := filepath.Join(dir, name)

	counts, err := ClassifyFile(ctx, p.classifier, path)
	if err != nil {
		return err
	}
	for _, cat := range gadget.Categories {
		if n := counts.Get(cat); n > 0 {
			p.metrics.CounterAdd(metrics.GadgetsClassifiedTotal.Name, float64(n), "category", cat.String())
		}
	}

	listing := gadget.ListingName(gadget.TrimListingExt(name))
	var buf bytes.Buffer
	if err := gadget.WriteSummary(&buf, listing, counts); err != nil {
		return err
	}

	out := filepath.Join(dir, gadget.SummaryName(listing))
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return errors.E(errors.KindInternal, op, errors.At(out, 0), "write summary", err)
	}
	return nil
}

// ClassifyFile classifies the listing at path, decompressing it if needed.
func ClassifyFile(ctx context.Context, c *gadget.Classifier, path string) (gadget.Counts, error) {
	const op = "pipeline.ClassifyFile"

	r, err := compress.OpenListing(path)
	if err != nil {
		return gadget.Counts{}, errors.InputNotFound(op, path, err)
	}
	defer r.Close()

	counts, err := c.ClassifyReader(ctx, r, nil)
	if err != nil {
		if ctx.Err() != nil {
			return gadget.Counts{}, ctx.Err()
		}
		return gadget.Counts{}, errors.E(errors.KindInternal, op, errors.At(path, 0), "read listing", err)
	}
	return counts, nil
}

// listFiles returns the names of regular files in dir accepted by keep, sorted.
func listFiles(dir string, keep func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !keep(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
