// Package health provides preflight checks run before long batch jobs:
// the gadget finder is installed, the input and output directories are
// usable and there is enough disk space for the listings.
package health

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// =============================================================================
// Health Check Interface
// =============================================================================

// Checker is the interface for preflight checks.
type Checker interface {
	// Name returns the check name.
	Name() string

	// Check performs the check.
	Check(ctx context.Context) CheckResult
}

// CheckFunc is a function type that implements Checker.
type CheckFunc func(ctx context.Context) CheckResult

func (f CheckFunc) Name() string                          { return "" }
func (f CheckFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// =============================================================================
// Health Status Types
// =============================================================================

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusUnknown   Status = "unknown"
)

// CheckResult holds the result of a check.
type CheckResult struct {
	// Status is the health status.
	Status Status `json:"status"`

	// Message provides additional details.
	Message string `json:"message,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration_ms"`

	// Timestamp is when the check was performed.
	Timestamp time.Time `json:"timestamp"`

	// Error is the error if the check failed.
	Error string `json:"error,omitempty"`

	// Metadata holds additional check-specific data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is the combined result of all checks.
type Response struct {
	// Status is the overall status: the worst of the individual results.
	Status Status `json:"status"`

	// Timestamp is when the checks were performed.
	Timestamp time.Time `json:"timestamp"`

	// Checks contains individual check results.
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Names returns the check names in sorted order.
func (r Response) Names() []string {
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Runner
// =============================================================================

// Runner holds a set of named checks and runs them together.
type Runner struct {
	mu      sync.RWMutex
	checks  map[string]Checker
	timeout time.Duration
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithTimeout sets the overall check timeout.
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = timeout
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		checks:  make(map[string]Checker),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a check. A check registered under an existing name replaces it.
func (r *Runner) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = checker
}

// RegisterFunc adds a check function.
func (r *Runner) RegisterFunc(name string, fn func(ctx context.Context) CheckResult) {
	r.Register(name, CheckFunc(fn))
}

// Check runs all registered checks concurrently.
func (r *Runner) Check(ctx context.Context) Response {
	r.mu.RLock()
	checks := make(map[string]Checker, len(r.checks))
	for name, checker := range r.checks {
		checks[name] = checker
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make(map[string]CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checks {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			start := time.Now()
			result := checker.Check(ctx)
			result.Duration = time.Since(start)
			result.Timestamp = time.Now()

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy, StatusUnknown:
			overallStatus = StatusUnhealthy
		case StatusDegraded:
			if overallStatus != StatusUnhealthy {
				overallStatus = StatusDegraded
			}
		}
	}

	return Response{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// =============================================================================
// Built-in Checks
// =============================================================================

// Installer is satisfied by scanners that can report whether their tool is available.
type Installer interface {
	IsInstalled(ctx context.Context) (bool, string, error)
}

// ToolCheck checks that an external tool is installed and reports its version.
type ToolCheck struct {
	Tool Installer
}

func (c *ToolCheck) Name() string { return "tool" }
func (c *ToolCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{Timestamp: time.Now()}

	installed, version, err := c.Tool.IsInstalled(ctx)
	switch {
	case err != nil:
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	case !installed:
		result.Status = StatusUnhealthy
		result.Error = "not found in PATH"
	default:
		result.Status = StatusHealthy
		result.Message = version
	}
	return result
}

// DirCheck checks that a directory exists and is accessible.
type DirCheck struct {
	Path string

	// Writable additionally requires write permission.
	Writable bool

	// Optional downgrades a failure to StatusDegraded.
	Optional bool
}

func (c *DirCheck) Name() string { return "dir" }
func (c *DirCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  map[string]any{"path": c.Path},
	}

	failed := StatusUnhealthy
	if c.Optional {
		failed = StatusDegraded
	}

	var stat unix.Stat_t
	if err := unix.Stat(c.Path, &stat); err != nil {
		result.Status = failed
		result.Error = fmt.Sprintf("stat %s: %v", c.Path, err)
		return result
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
		result.Status = failed
		result.Error = fmt.Sprintf("%s is not a directory", c.Path)
		return result
	}

	mode := uint32(unix.R_OK | unix.X_OK)
	if c.Writable {
		mode |= unix.W_OK
	}
	if err := unix.Access(c.Path, mode); err != nil {
		result.Status = failed
		result.Error = fmt.Sprintf("access %s: %v", c.Path, err)
		return result
	}

	result.Status = StatusHealthy
	if c.Writable {
		result.Message = "readable and writable"
	} else {
		result.Message = "readable"
	}
	return result
}

// DiskCheck checks available disk space.
type DiskCheck struct {
	Path         string
	MinFreeBytes int64
	// MinFreePercent is the minimum percentage of free space required (0-100).
	// If set, this takes precedence over MinFreeBytes.
	MinFreePercent float64
}

func (c *DiskCheck) Name() string { return "disk" }
func (c *DiskCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}

	path := c.Path
	if path == "" {
		path = "/"
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("failed to get disk stats: %v", err)
		return result
	}

	// Bsize is always positive on supported platforms (Linux/Unix)
	totalBytes := stat.Blocks * uint64(stat.Bsize) //nolint:gosec // G115: safe conversion
	freeBytes := stat.Bavail * uint64(stat.Bsize)  //nolint:gosec // G115: safe conversion
	freePercent := 0.0
	if totalBytes > 0 {
		freePercent = float64(freeBytes) / float64(totalBytes) * 100
	}

	result.Metadata["total_bytes"] = totalBytes
	result.Metadata["free_bytes"] = freeBytes
	result.Metadata["free_percent"] = fmt.Sprintf("%.2f%%", freePercent)
	result.Metadata["path"] = path

	if c.MinFreePercent > 0 {
		if freePercent < c.MinFreePercent {
			result.Status = StatusUnhealthy
			result.Error = fmt.Sprintf("disk free space %.2f%% is below threshold %.2f%%", freePercent, c.MinFreePercent)
			return result
		}
	} else if c.MinFreeBytes > 0 {
		if freeBytes < uint64(c.MinFreeBytes) { //nolint:gosec // MinFreeBytes is always positive here
			result.Status = StatusUnhealthy
			result.Error = fmt.Sprintf("disk free space %d bytes is below threshold %d bytes", freeBytes, c.MinFreeBytes)
			return result
		}
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("disk has %.2f%% free space", freePercent)
	return result
}

// MemoryCheck reports Go runtime memory usage. Listings are held in memory
// while they are written, so a low MaxHeapBytes catches runaway batches.
type MemoryCheck struct {
	MaxHeapBytes uint64
}

func (c *MemoryCheck) Name() string { return "memory" }
func (c *MemoryCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	result.Metadata["heap_alloc_bytes"] = m.HeapAlloc
	result.Metadata["goroutines"] = runtime.NumGoroutine()

	if c.MaxHeapBytes > 0 && m.HeapAlloc > c.MaxHeapBytes {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("heap usage %d bytes exceeds threshold %d bytes", m.HeapAlloc, c.MaxHeapBytes)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("heap: %d MB, goroutines: %d", m.HeapAlloc/1024/1024, runtime.NumGoroutine())
	return result
}

// SystemMemoryCheck is defined in sysinfo_linux.go and sysinfo_other.go
// for platform-specific implementations.

// =============================================================================
// Interface Compliance
// =============================================================================

var (
	_ Checker = (*ToolCheck)(nil)
	_ Checker = (*DirCheck)(nil)
	_ Checker = (*DiskCheck)(nil)
	_ Checker = (*MemoryCheck)(nil)
	_ Checker = (*SystemMemoryCheck)(nil)
	_ Checker = CheckFunc(nil)
)
