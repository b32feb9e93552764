// Package aggregate sums gadget category summaries across files and renders
// the obfuscated/unobfuscated comparison table.
package aggregate

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
)

// ParseSummary reads a summary from r and returns the counts it contains.
// Lines without one of the six summary labels are ignored, so a summary
// appended to a raw gadget listing still parses. path is only used in errors.
func ParseSummary(ctx context.Context, r io.Reader, path string) (gadget.Counts, error) {
	const op = "aggregate.ParseSummary"

	var counts gadget.Counts
	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return counts, err
			}
		}

		raw, err := gadget.ReadLine(br)
		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return counts, errors.E(errors.KindInternal, op, "read summary", errors.At(path, lineNo), err)
		}

		line := strings.TrimSpace(raw)
		field, ok := matchField(line)
		if !ok {
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return counts, errors.MalformedSummary(op, path, lineNo, line, nil)
		}
		value := strings.TrimSpace(line[idx+1:])
		// IntSize-1 bits keeps every count a non-negative int.
		n, err := strconv.ParseUint(value, 10, strconv.IntSize-1)
		if err != nil {
			return counts, errors.MalformedSummary(op, path, lineNo, line, err)
		}
		ref := field.Ref(&counts)
		if int(n) > math.MaxInt-*ref {
			return counts, errors.MalformedSummary(op, path, lineNo, line, strconv.ErrRange)
		}
		*ref += int(n)
	}
}

// ParseSummaryFile opens path and parses it with ParseSummary.
func ParseSummaryFile(ctx context.Context, path string) (gadget.Counts, error) {
	f, err := os.Open(path)
	if err != nil {
		return gadget.Counts{}, errors.InputNotFound("aggregate.ParseSummaryFile", path, err)
	}
	defer f.Close()

	return ParseSummary(ctx, f, path)
}

// matchField returns the first summary field whose label occurs in line.
func matchField(line string) (gadget.SummaryField, bool) {
	for _, f := range gadget.SummaryFields {
		if strings.Contains(line, f.Label) {
			return f, true
		}
	}
	return gadget.SummaryField{}, false
}
