package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/exploopio/ropstat/pkg/aggregate"
	"github.com/exploopio/ropstat/pkg/config"
	"github.com/exploopio/ropstat/pkg/history"
)

func newAggregateCmd(a *app) *cobra.Command {
	var (
		all        bool
		binary     string
		obfuscType string
		stdout     bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate (-a | -b <binary>)",
		Short: "Aggregate gadget summaries into a comparison table",
		Long: `Sum the category summaries of both binary sets and write a comparison
table to <data>/coreutils-aggregate.dat (-a) or <data>/<binary>.dat (-b).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			ctx := cmd.Context()

			obfusc, err := config.ParseObfuscType(obfuscType)
			if err != nil {
				return err
			}
			unobfDir, err := a.cfg.GadgetDir(config.BinTypeUnobfuscated, "")
			if err != nil {
				return err
			}
			obfDir, err := a.cfg.GadgetDir(config.BinTypeObfuscated, obfusc)
			if err != nil {
				return err
			}
			sets := aggregate.Sets{Unobfuscated: unobfDir, Obfuscated: obfDir}

			agg := aggregate.New(&aggregate.Config{
				Workers: a.cfg.Workers,
				Logger:  a.logger,
				Metrics: a.metrics,
			})

			var report *aggregate.Report
			if all {
				report, err = agg.BuildBatch(ctx, sets)
			} else {
				report, err = agg.BuildBinary(ctx, sets, binary)
			}
			if err != nil {
				return err
			}

			path, err := report.WriteFile(a.cfg.Paths.Data)
			if err != nil {
				return err
			}
			a.logger.Info("Report written to %s", path)

			if stdout {
				if err := report.Render(cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			if a.cfg.History.Database != "" {
				if err := a.record(cmd, report); err != nil {
					return err
				}
			}

			printElapsed(cmd.OutOrStdout(), time.Since(start))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&all, "all", "a", false, "aggregate every binary of both sets")
	flags.StringVarP(&binary, "binary", "b", "", "aggregate a single binary")
	flags.StringVar(&obfuscType, "obfusc-type", "", "read obfuscated summaries from this pass subdirectory: bcf, fla or sub")
	flags.BoolVar(&stdout, "stdout", false, "also print the table")
	cmd.MarkFlagsMutuallyExclusive("all", "binary")
	cmd.MarkFlagsOneRequired("all", "binary")
	return cmd
}

// record saves report in the history database.
func (a *app) record(cmd *cobra.Command, report *aggregate.Report) error {
	store, err := history.Open(a.cfg.History.Database)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	id, err := store.SaveReport(cmd.Context(), report)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	a.logger.Debug("Recorded run %s", id)
	return nil
}
