package app

import (
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/large-farva/voicememo/internal/wav"
)

// diskStats describes the filesystem holding the data root. RecordSeconds
// is how much capture audio still fits in the available space.
type diskStats struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
	RecordSeconds  uint64  `json:"record_seconds"`
}

// diskUsage returns disk usage stats for the given path, or nil on error.
func diskUsage(path string) *diskStats {
	u, err := disk.Usage(path)
	if err != nil {
		return nil
	}
	return &diskStats{
		TotalBytes:     u.Total,
		UsedBytes:      u.Used,
		AvailableBytes: u.Free,
		UsedPercent:    u.UsedPercent,
		RecordSeconds:  u.Free / wav.ByteRate,
	}
}

type hostStats struct {
	Hostname      string  `json:"hostname"`
	Platform      string  `json:"platform"`
	Kernel        string  `json:"kernel"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemPercent    float64 `json:"mem_percent"`
}

// hostInfo collects what it can; fields it cannot read stay zero.
func hostInfo() hostStats {
	var hs hostStats
	if hi, err := host.Info(); err == nil {
		hs.Hostname = hi.Hostname
		hs.Platform = hi.Platform + " " + hi.PlatformVersion
		hs.Kernel = hi.KernelVersion
		hs.UptimeSeconds = hi.Uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hs.MemTotalBytes = vm.Total
		hs.MemUsedBytes = vm.Used
		hs.MemPercent = vm.UsedPercent
	}
	return hs
}
