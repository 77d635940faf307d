package monitoring

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine the server runs on.
type HostStats struct {
	Hostname          string  `json:"hostname"`
	Platform          string  `json:"platform"`
	UptimeSeconds     uint64  `json:"uptimeSeconds"`
	MemoryTotal       uint64  `json:"memoryTotal"`
	MemoryUsed        uint64  `json:"memoryUsed"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	Load1             float64 `json:"load1"`
	Load5             float64 `json:"load5"`
	Load15            float64 `json:"load15"`
}

// CollectHostStats gathers what it can. Stats that are unavailable on the
// platform are left zero and reported in the joined error.
func CollectHostStats(ctx context.Context) (HostStats, error) {
	var stats HostStats
	var errs []error

	if info, err := host.InfoWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.Hostname = info.Hostname
		stats.Platform = info.Platform
		stats.UptimeSeconds = info.Uptime
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.MemoryTotal = vm.Total
		stats.MemoryUsed = vm.Used
		stats.MemoryUsedPercent = vm.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.Load1 = avg.Load1
		stats.Load5 = avg.Load5
		stats.Load15 = avg.Load15
	}

	return stats, errors.Join(errs...)
}
