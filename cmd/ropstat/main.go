// ropstat - ROP gadget statistics for obfuscated and unobfuscated binaries
//
// A typical run over the coreutils sets:
//
//	ropstat generate --bin-type unobfusc
//	ropstat generate --bin-type obfusc
//	ropstat categorize --gadget-type unobfusc
//	ropstat categorize --gadget-type obfusc
//	ropstat aggregate -a
//	ropstat aggregate -b ls
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/exploopio/ropstat/pkg/config"
	"github.com/exploopio/ropstat/pkg/core"
	"github.com/exploopio/ropstat/pkg/metrics"
)

const (
	appName    = "ropstat"
	appVersion = "1.0.0"
)

// app carries the state shared by every subcommand once the configuration
// has been loaded.
type app struct {
	configPath string
	verbose    bool
	workers    int

	cfg     *config.Config
	logger  core.Logger
	metrics metrics.Collector
	prom    *metrics.PrometheusCollector
}

func main() {
	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	cancel()
	if err != nil {
		logger := a.logger
		if logger == nil {
			logger = core.LoggerFromVerbose(appName, false)
		}
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Generate, categorize and aggregate ROP gadget counts",
		Long: `ropstat measures how obfuscation changes the ROP gadget surface of a binary.

It runs ROPgadget over two sets of binaries (obfuscated and unobfuscated),
classifies every gadget as memory, arithmetic, logic, control flow or other,
and aggregates the per-binary counts into comparison tables.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to config file (or "+config.EnvConfig+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.IntVarP(&a.workers, "workers", "j", 0, "files processed concurrently (default from config)")

	root.AddCommand(
		newGenerateCmd(a),
		newCategorizeCmd(a),
		newClassifyCmd(a),
		newAggregateCmd(a),
		newRenameCmd(a),
		newHistoryCmd(a),
		newCheckCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and applies command-line overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Verbose = true
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = a.workers
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = core.LoggerFromVerbose(appName, cfg.Verbose)
	a.metrics = &metrics.NopCollector{}
	if cfg.Metrics.Textfile != "" {
		a.prom = metrics.NewPrometheusCollector(&metrics.PrometheusConfig{
			RegisterDefaultMetrics: true,
			ProcessMetrics:         true,
		})
		a.metrics = a.prom
	}
	return nil
}

// finish exports metrics collected during the command.
func (a *app) finish() error {
	if a.prom == nil {
		return nil
	}
	if err := a.prom.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	a.logger.Debug("Metrics written to %s", a.cfg.Metrics.Textfile)
	return nil
}

// printElapsed writes the footer every batch command ends with.
func printElapsed(w io.Writer, d time.Duration) {
	fmt.Fprintln(w, formatElapsed(d))
}

func formatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("Total time taken: %02dh %02dm %02ds", total/3600, (total/60)%60, total%60)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}
