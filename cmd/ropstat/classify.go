package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/exploopio/ropstat/pkg/compress"
	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
)

var categoryColors = map[gadget.Category]func(a ...any) string{
	gadget.Memory:      color.New(color.FgHiBlue).SprintFunc(),
	gadget.Arithmetic:  color.New(color.FgHiGreen).SprintFunc(),
	gadget.Logic:       color.New(color.FgHiMagenta).SprintFunc(),
	gadget.ControlFlow: color.New(color.Bold, color.FgHiRed).SprintFunc(),
	gadget.Other:       color.New(color.Faint).SprintFunc(),
}

func newClassifyCmd(a *app) *cobra.Command {
	var labels bool

	cmd := &cobra.Command{
		Use:   "classify <listing>",
		Short: "Categorize one gadget listing and print the summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "classify"
			path := args[0]
			out := cmd.OutOrStdout()

			r, err := compress.OpenListing(path)
			if err != nil {
				return errors.InputNotFound(op, path, err)
			}
			defer r.Close()

			var fn gadget.LineFunc
			if labels {
				fn = labelPrinter(out)
			}

			counts, err := a.classifier().ClassifyReader(cmd.Context(), r, fn)
			if err != nil {
				return errors.E(errors.KindInternal, op, errors.At(path, 0), "read listing", err)
			}
			if labels {
				fmt.Fprintln(out)
			}

			name := gadget.ListingName(gadget.TrimListingExt(filepath.Base(path)))
			return gadget.WriteSummary(out, name, counts)
		},
	}

	cmd.Flags().BoolVarP(&labels, "labels", "l", false, "print every gadget with its category")
	return cmd
}

func labelPrinter(w io.Writer) gadget.LineFunc {
	return func(cat gadget.Category, line string) {
		fmt.Fprintf(w, "%s %s\n", categoryColors[cat](fmt.Sprintf("%-12s", cat)), line)
	}
}
