// Package ropgadget wraps the ROPgadget command line tool, which lists the
// gadgets found in a binary one per line.
package ropgadget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/exploopio/ropstat/pkg/core"
	"github.com/exploopio/ropstat/pkg/errors"
)

const (
	// DefaultBinary is the default ROPgadget binary name.
	DefaultBinary = "ROPgadget"

	// DefaultTimeout is the default per-binary timeout.
	DefaultTimeout = 30 * time.Minute
)

// Runner produces the raw gadget listing for one binary.
type Runner interface {
	Run(ctx context.Context, binaryPath string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, binaryPath string) ([]byte, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, binaryPath string) ([]byte, error) {
	return f(ctx, binaryPath)
}

// Scanner runs ROPgadget as an external process.
type Scanner struct {
	// Configuration
	Binary  string        // Path to ROPgadget (default: "ROPgadget")
	Args    []string      // Extra arguments appended after --binary <path>
	Timeout time.Duration // Per-binary timeout (default: 30 minutes)
	Verbose bool          // Log command lines and timings
	Logger  core.Logger

	// Internal
	version string
}

// NewScanner creates a new ROPgadget scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{
		Binary:  DefaultBinary,
		Timeout: DefaultTimeout,
	}
}

// Name returns the scanner name.
func (s *Scanner) Name() string {
	return "ropgadget"
}

// Version returns the ROPgadget version reported by IsInstalled.
func (s *Scanner) Version() string {
	return s.version
}

// SetVerbose enables/disables verbose output.
func (s *Scanner) SetVerbose(v bool) {
	s.Verbose = v
}

// IsInstalled checks if ROPgadget is installed.
func (s *Scanner) IsInstalled(ctx context.Context) (bool, string, error) {
	installed, version, err := core.CheckBinaryInstalled(ctx, s.binary(), "--version")
	if err != nil {
		return false, "", errors.E(errors.KindExternalTool, "ropgadget.IsInstalled", err)
	}
	if installed {
		s.version = version
	}
	return installed, version, nil
}

// Scan runs ROPgadget on the binary at target and returns its stdout.
func (s *Scanner) Scan(ctx context.Context, target string, opts *core.ScanOptions) (*core.ScanResult, error) {
	const op = "ropgadget.Scan"
	start := time.Now()

	if err := core.ValidateScanOptions(opts); err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, err)
	}

	cfg := &core.ExecConfig{
		Binary:  s.binary(),
		Args:    s.buildArgs(target, opts),
		Timeout: s.Timeout,
		Verbose: s.Verbose || (opts != nil && opts.Verbose),
		Logger:  s.Logger,
	}
	if opts != nil {
		cfg.Env = opts.Env
		cfg.WorkDir = opts.WorkDir
	}

	execResult, err := core.ExecuteScanner(ctx, cfg)
	if err != nil {
		return nil, errors.E(errors.KindExternalTool, op, errors.At(target, 0), err)
	}

	if execResult.ExitCode != 0 {
		msg := fmt.Sprintf("%s exited with code %d", cfg.Binary, execResult.ExitCode)
		if stderr := strings.TrimSpace(string(execResult.Stderr)); stderr != "" {
			msg += ": " + stderr
		}
		return nil, errors.E(errors.KindExternalTool, op, errors.At(target, 0), msg)
	}

	return &core.ScanResult{
		ScannerName:    s.Name(),
		ScannerVersion: s.version,
		Target:         target,
		StartedAt:      start.Unix(),
		FinishedAt:     time.Now().Unix(),
		DurationMs:     execResult.Duration.Milliseconds(),
		ExitCode:       execResult.ExitCode,
		RawOutput:      execResult.Stdout,
		Stderr:         string(execResult.Stderr),
	}, nil
}

// Run implements Runner.
func (s *Scanner) Run(ctx context.Context, binaryPath string) ([]byte, error) {
	result, err := s.Scan(ctx, binaryPath, nil)
	if err != nil {
		return nil, err
	}
	return result.RawOutput, nil
}

func (s *Scanner) binary() string {
	if s.Binary == "" {
		return DefaultBinary
	}
	return s.Binary
}

// buildArgs builds the ROPgadget command arguments.
func (s *Scanner) buildArgs(target string, opts *core.ScanOptions) []string {
	args := []string{"--binary", target}
	args = append(args, s.Args...)
	if opts != nil {
		args = append(args, opts.ExtraArgs...)
	}
	return args
}

var (
	_ core.Scanner = (*Scanner)(nil)
	_ Runner       = (*Scanner)(nil)
)
