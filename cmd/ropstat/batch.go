package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/exploopio/ropstat/pkg/compress"
	"github.com/exploopio/ropstat/pkg/config"
	"github.com/exploopio/ropstat/pkg/errors"
	"github.com/exploopio/ropstat/pkg/gadget"
	"github.com/exploopio/ropstat/pkg/pipeline"
	"github.com/exploopio/ropstat/pkg/retry"
	"github.com/exploopio/ropstat/pkg/scanners/ropgadget"
)

// scanner returns the ROPgadget wrapper configured from a.cfg.
func (a *app) scanner() *ropgadget.Scanner {
	s := ropgadget.NewScanner()
	s.Binary = a.cfg.ROPgadget.Binary
	s.Args = a.cfg.ROPgadget.Args
	if a.cfg.ROPgadget.Timeout > 0 {
		s.Timeout = a.cfg.ROPgadget.Timeout
	}
	s.SetVerbose(a.cfg.Verbose)
	s.Logger = a.logger
	return s
}

func (a *app) classifier() *gadget.Classifier {
	return gadget.NewClassifier(gadget.WithMatchMode(a.cfg.MatchMode))
}

func (a *app) pipeline(runner ropgadget.Runner) *pipeline.Pipeline {
	cfg := &pipeline.Config{
		Runner:      runner,
		Classifier:  a.classifier(),
		GadgetsOnly: a.cfg.Listings.GadgetsOnly,
		Workers:     a.cfg.Workers,
		LaunchRate:  a.cfg.LaunchRate,
		Retries:     a.cfg.ROPgadget.Retries,
		Logger:      a.logger,
		Metrics:     a.metrics,
	}
	if a.cfg.ROPgadget.RetryDelay > 0 {
		backoff := retry.DefaultBackoffConfig()
		backoff.BaseInterval = a.cfg.ROPgadget.RetryDelay
		cfg.Backoff = backoff
	}
	if alg := a.cfg.Compression(); alg != compress.AlgorithmNone {
		cfg.Compressor = compress.NewCompressor(alg, compress.LevelDefault)
	}
	return pipeline.New(cfg)
}

func newGenerateCmd(a *app) *cobra.Command {
	var binType, tool string

	cmd := &cobra.Command{
		Use:   "generate --bin-type {obfusc|unobfusc}",
		Short: "Run ROPgadget over every binary of a set",
		Long: `Run ROPgadget over every file in <binaries>/<bin-type>/ and write one
gadget listing per binary to <gadgets>/<bin-type>/<binary>.gdt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "generate"
			start := time.Now()
			ctx := cmd.Context()

			set, err := config.ParseBinType(binType)
			if err != nil {
				return err
			}
			if tool != "" {
				a.cfg.ROPgadget.Binary = tool
			}

			scanner := a.scanner()
			installed, version, err := scanner.IsInstalled(ctx)
			if err != nil {
				return err
			}
			if !installed {
				return errors.E(errors.KindExternalTool, op,
					fmt.Sprintf("%s not found in PATH", scanner.Binary), errors.ErrToolNotInstalled)
			}
			a.logger.Debug("Using %s %s", scanner.Binary, version)

			gadgetDir, err := a.cfg.GadgetDir(set, "")
			if err != nil {
				return err
			}

			stats, err := a.pipeline(scanner).Generate(ctx, a.cfg.BinaryDir(set), gadgetDir)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				a.logger.Warn("%d of %d %s binaries produced no gadget file", stats.Failed, stats.Files, set)
			}

			printElapsed(cmd.OutOrStdout(), time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&binType, "bin-type", "", "binary set to process: obfusc or unobfusc")
	cmd.Flags().StringVar(&tool, "ropgadget", "", "path to the ROPgadget binary (overrides config)")
	_ = cmd.MarkFlagRequired("bin-type")
	return cmd
}

func newCategorizeCmd(a *app) *cobra.Command {
	var gadgetType, obfuscType string

	cmd := &cobra.Command{
		Use:   "categorize --gadget-type {obfusc|unobfusc} [--obfusc-type bcf|fla|sub]",
		Short: "Categorize every gadget listing of a set",
		Long: `Classify every gadget listing (.gdt, .gdt.zst, .gdt.gz, .gdt.xz) in
<gadgets>/<gadget-type>/[<obfusc-type>/] and write a <listing>.cnt summary
next to each one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			set, err := config.ParseBinType(gadgetType)
			if err != nil {
				return err
			}
			obfusc, err := config.ParseObfuscType(obfuscType)
			if err != nil {
				return err
			}
			dir, err := a.cfg.GadgetDir(set, obfusc)
			if err != nil {
				return err
			}

			stats, err := a.pipeline(nil).Categorize(cmd.Context(), dir)
			if err != nil {
				return err
			}
			a.logger.Debug("Categorized %d gadget files in %s", stats.Files, dir)

			printElapsed(cmd.OutOrStdout(), time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&gadgetType, "gadget-type", "", "gadget set to process: obfusc or unobfusc")
	cmd.Flags().StringVar(&obfuscType, "obfusc-type", "", "obfuscation pass subdirectory: bcf, fla or sub")
	_ = cmd.MarkFlagRequired("gadget-type")
	return cmd
}
