package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/exploopio/ropstat/pkg/aggregate"
	"github.com/exploopio/ropstat/pkg/config"
	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/health"
	"github.com/exploopio/ropstat/pkg/history"
	"github.com/exploopio/ropstat/pkg/rename"
)

func newRenameCmd(a *app) *cobra.Command {
	var dir, ext string

	cmd := &cobra.Command{
		Use:   "rename --dir <dir> --extn <ext>",
		Short: "Add an extension to every file in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rename.AddExtension(dir, ext, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("Renamed %d files in %s", len(res.Renamed), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory whose files are renamed")
	cmd.Flags().StringVar(&ext, "extn", "", "extension to add, without the leading period")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("extn")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		binary  string
		id      string
		limit   int
		outJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [--binary name | --id run]",
		Short: "List recorded aggregation runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "history"
			if a.cfg.History.Database == "" {
				return errors.E(errors.KindInvalidInput, op, "history.database is not configured", errors.ErrInvalidConfig)
			}

			store, err := history.Open(a.cfg.History.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			var runs []history.Run
			if id != "" {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if run == nil {
					return errors.E(errors.KindInputNotFound, op, fmt.Sprintf("no recorded run %s", id))
				}
				runs = []history.Run{*run}
			} else {
				runs, err = store.ListRuns(cmd.Context(), binary, limit)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if outJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			for i, run := range runs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "run %s  %s\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				report := &aggregate.Report{Title: run.Title, Mode: run.Mode, Binary: run.Binary, Rows: run.Rows}
				if err := report.Render(out); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&binary, "binary", "b", "", "only runs for this binary")
	cmd.Flags().StringVar(&id, "id", "", "show a single run")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n runs")
	cmd.Flags().BoolVar(&outJSON, "json", false, "output runs as JSON")
	cmd.MarkFlagsMutuallyExclusive("id", "binary")
	cmd.MarkFlagsMutuallyExclusive("id", "limit")
	return cmd
}

var statusColors = map[health.Status]func(a ...any) string{
	health.StatusHealthy:   color.New(color.FgGreen).SprintFunc(),
	health.StatusDegraded:  color.New(color.FgYellow).SprintFunc(),
	health.StatusUnhealthy: color.New(color.Bold, color.FgRed).SprintFunc(),
	health.StatusUnknown:   color.New(color.Faint).SprintFunc(),
}

func newCheckCmd(a *app) *cobra.Command {
	var minFree int64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that ROPgadget and the working directories are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := health.NewRunner()
			runner.Register("ropgadget", &health.ToolCheck{Tool: a.scanner()})
			for _, set := range []config.BinType{config.BinTypeUnobfuscated, config.BinTypeObfuscated} {
				runner.Register("binaries/"+string(set), &health.DirCheck{Path: a.cfg.BinaryDir(set), Optional: true})
				dir, _ := a.cfg.GadgetDir(set, "")
				runner.Register("gadgets/"+string(set), &health.DirCheck{Path: dir, Writable: true, Optional: true})
			}
			runner.Register("data", &health.DirCheck{Path: a.cfg.Paths.Data, Writable: true, Optional: true})
			runner.Register("disk", &health.DiskCheck{Path: existingParent(a.cfg.Paths.Gadgets), MinFreeBytes: minFree})
			runner.Register("system_memory", &health.SystemMemoryCheck{MaxUsagePercent: 95})

			resp := runner.Check(cmd.Context())

			out := cmd.OutOrStdout()
			for _, name := range resp.Names() {
				r := resp.Checks[name]
				detail := r.Message
				if r.Error != "" {
					detail = r.Error
				}
				fmt.Fprintf(out, "%-18s %s %s\n", name, statusColors[r.Status](fmt.Sprintf("%-9s", r.Status)), detail)
			}
			fmt.Fprintf(out, "%s\n", strings.ToUpper(string(resp.Status)))

			if resp.Status == health.StatusUnhealthy {
				return errors.E(errors.KindExternalTool, "check", "preflight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&minFree, "min-free", 1<<30, "minimum free bytes on the gadget filesystem")
	return cmd
}

// existingParent returns path or its nearest existing ancestor, so the disk
// check measures the filesystem the directory will be created on.
func existingParent(path string) string {
	path, err := filepath.Abs(path)
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
