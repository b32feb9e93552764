// Package core provides the building blocks shared by the ropstat packages:
// the logger interface, external tool execution and the scanner contract.
package core

import (
	"context"
)

// =============================================================================
// Scanner Interface
// =============================================================================

// Scanner runs an external analysis tool against a target and returns its raw output.
type Scanner interface {
	// Name returns the scanner name (e.g., "ropgadget")
	Name() string

	// Version returns the scanner version, known after IsInstalled
	Version() string

	// Scan runs the tool on target and returns raw output
	Scan(ctx context.Context, target string, opts *ScanOptions) (*ScanResult, error)

	// IsInstalled checks if the underlying tool is available
	IsInstalled(ctx context.Context) (bool, string, error)
}

// ScanOptions configures a single scan.
type ScanOptions struct {
	ExtraArgs []string          `yaml:"extra_args" json:"extra_args"`
	Env       map[string]string `yaml:"env" json:"env"`
	WorkDir   string            `yaml:"work_dir" json:"work_dir"`

	// Output
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// ScanResult holds the raw scan result before parsing.
type ScanResult struct {
	ScannerName    string `json:"scanner_name"`
	ScannerVersion string `json:"scanner_version"`
	Target         string `json:"target"`

	// Timing
	StartedAt  int64 `json:"started_at"`
	FinishedAt int64 `json:"finished_at"`
	DurationMs int64 `json:"duration_ms"`

	// Results
	ExitCode  int    `json:"exit_code"`
	RawOutput []byte `json:"raw_output,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
}
