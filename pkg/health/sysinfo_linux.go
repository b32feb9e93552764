//go:build linux

package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SystemMemoryCheck checks system-wide memory (Linux only). ROPgadget holds a
// full disassembly in memory, so each generate worker needs headroom.
type SystemMemoryCheck struct {
	MaxUsagePercent float64

	// MinFreeBytes is the free memory required before starting workers.
	MinFreeBytes uint64
}

func (c *SystemMemoryCheck) Name() string { return "system_memory" }

func (c *SystemMemoryCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("failed to get system memory info: %v", err)
		return result
	}

	totalMem := uint64(info.Totalram) * uint64(info.Unit)
	freeMem := uint64(info.Freeram) * uint64(info.Unit)
	usagePercent := 0.0
	if totalMem > 0 {
		usagePercent = float64(totalMem-freeMem) / float64(totalMem) * 100
	}

	result.Metadata["total_bytes"] = totalMem
	result.Metadata["free_bytes"] = freeMem
	result.Metadata["usage_percent"] = fmt.Sprintf("%.2f%%", usagePercent)

	if c.MaxUsagePercent > 0 && usagePercent > c.MaxUsagePercent {
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("memory usage %.2f%% exceeds threshold %.2f%%", usagePercent, c.MaxUsagePercent)
		return result
	}
	if c.MinFreeBytes > 0 && freeMem < c.MinFreeBytes {
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("free memory %d bytes is below threshold %d bytes", freeMem, c.MinFreeBytes)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("memory usage: %.2f%%", usagePercent)
	return result
}
