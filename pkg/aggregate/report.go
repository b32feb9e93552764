package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
	"github.com/exploopio/ropstat/pkg/metrics"
)

// Mode selects which summaries a report covers.
type Mode string

const (
	// ModeBatch sums every summary in each set directory.
	ModeBatch Mode = "batch"
	// ModeBinary reads the single summary of one binary from each set.
	ModeBinary Mode = "binary"
)

// Row labels, in report order.
const (
	RowUnobfuscated = "unobfuscated"
	RowObfuscated   = "obfuscated"
)

// BatchFileName is the report file written in ModeBatch.
const BatchFileName = "coreutils-aggregate.dat"

// Sets names the gadget directories of the two binary sets.
type Sets struct {
	Unobfuscated string
	Obfuscated   string
}

// Row is one line of the report table.
type Row struct {
	Label  string        `json:"label"`
	Counts gadget.Counts `json:"counts"`
}

// Report is a rendered-on-demand comparison of the two binary sets.
type Report struct {
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	Binary    string    `json:"binary,omitempty"`
	Rows      []Row     `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// FileName returns the data file name the report is written to.
func (r *Report) FileName() string {
	if r.Mode == ModeBinary {
		return r.Binary + ".dat"
	}
	return BatchFileName
}

// Render writes the title, column header and one row per set to w.
func (r *Report) Render(w io.Writer) error {
	var buf bytes.Buffer

	buf.WriteString(r.Title)
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "gadget/category\t\t%7s\t\t%7s\t\t%7s\t\t%7s\t\t%7s\t\t%7s\n",
		"total", "memory", "arith", "logic", "ctrl", "other")

	for _, row := range r.Rows {
		c := row.Counts
		fmt.Fprintf(&buf, "%s\t\t%7d\t\t%7d\t\t%7d\t\t%7d\t\t%7d\t\t%7d\n",
			row.Label, c.Total, c.Memory, c.Arithmetic, c.Logic, c.ControlFlow, c.Other)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile renders the report into dir/FileName(). The table is rendered
// in full before the file is created, so a failed run leaves no partial table.
func (r *Report) WriteFile(dir string) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, r.FileName())
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}

// BuildBatch aggregates every summary file of both sets. An empty set
// directory yields an all-zero row.
func (a *Aggregator) BuildBatch(ctx context.Context, sets Sets) (*Report, error) {
	report := &Report{
		Title:     "Aggregated gadget counts for unobfuscated and obfuscated coreutils binaries",
		Mode:      ModeBatch,
		CreatedAt: time.Now().UTC(),
	}

	for _, set := range sets.ordered() {
		paths, err := ListSummaries(set.dir)
		if err != nil {
			return nil, err
		}

		a.logger.Info("Aggregating %s binaries' gadgets", set.label)
		counts, err := a.AggregateFiles(ctx, paths)
		if err != nil {
			return nil, err
		}
		a.logger.Info("Aggregated %d %s binaries' gadgets", len(paths), set.label)

		report.Rows = append(report.Rows, Row{Label: set.label, Counts: counts})
	}

	a.observe(report)
	return report, nil
}

// BuildBinary aggregates the summary of one binary from both sets. Both
// summary files must be readable before either is parsed.
func (a *Aggregator) BuildBinary(ctx context.Context, sets Sets, binary string) (*Report, error) {
	if binary == "" {
		return nil, errors.E(errors.KindInvalidInput, "aggregate.BuildBinary", "binary name is required")
	}

	report := &Report{
		Title:     fmt.Sprintf("Aggregated gadget counts for unobfuscated and obfuscated \"%s\" binary", binary),
		Mode:      ModeBinary,
		Binary:    binary,
		CreatedAt: time.Now().UTC(),
	}

	ordered := sets.ordered()
	for _, set := range ordered {
		if err := checkReadable(set.summary(binary)); err != nil {
			return nil, err
		}
	}

	for _, set := range ordered {
		a.logger.Info("Aggregating %s %q binary's gadgets", set.label, binary)
		counts, err := a.AggregateFiles(ctx, []string{set.summary(binary)})
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, Row{Label: set.label, Counts: counts})
	}

	a.observe(report)
	return report, nil
}

// observe publishes the report cells as gauges.
func (a *Aggregator) observe(r *Report) {
	for _, row := range r.Rows {
		a.metrics.GaugeSet(metrics.ReportGadgets.Name, float64(row.Counts.Total),
			"row", row.Label, "category", "total")
		for _, cat := range gadget.Categories {
			a.metrics.GaugeSet(metrics.ReportGadgets.Name, float64(row.Counts.Get(cat)),
				"row", row.Label, "category", cat.String())
		}
	}
}

type setDir struct {
	label string
	dir   string
}

func (s setDir) summary(binary string) string {
	return filepath.Join(s.dir, gadget.BinarySummaryName(binary))
}

// ordered returns the sets in report row order.
func (s Sets) ordered() []setDir {
	return []setDir{
		{label: RowUnobfuscated, dir: s.Unobfuscated},
		{label: RowObfuscated, dir: s.Obfuscated},
	}
}

func checkReadable(path string) error {
	const op = "aggregate.checkReadable"

	info, err := os.Stat(path)
	if err != nil {
		return errors.InputNotFound(op, path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.E(errors.KindInputNotFound, op, errors.At(path, 0), "not a regular file")
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.InputNotFound(op, path, err)
	}
	return f.Close()
}
