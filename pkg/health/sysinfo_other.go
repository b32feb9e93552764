//go:build !linux

package health

import (
	"context"
	"runtime"
	"time"
)

// SystemMemoryCheck checks system-wide memory.
// Outside Linux there is no portable source, so the check only reports the platform.
type SystemMemoryCheck struct {
	MaxUsagePercent float64
	MinFreeBytes    uint64
}

func (c *SystemMemoryCheck) Name() string { return "system_memory" }

func (c *SystemMemoryCheck) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:    StatusHealthy,
		Message:   "system memory check (limited on " + runtime.GOOS + ")",
		Timestamp: time.Now(),
		Metadata:  map[string]any{"platform": runtime.GOOS},
	}
}
