// Package hostinfo snapshots the local machine for status reporting.
package hostinfo

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"medmodeld/internal/procrun"
)

// GPUStatus is the outcome of the GPU probe. Unknown means the probe tool was
// missing or did not answer; it is not the same as Absent.
type GPUStatus string

const (
	GPUPresent GPUStatus = "present"
	GPUAbsent  GPUStatus = "absent"
	GPUUnknown GPUStatus = "unknown"
)

// Info is a point-in-time host snapshot.
type Info struct {
	Platform      string    `json:"platform"`
	Architecture  string    `json:"architecture"`
	TotalMemory   uint64    `json:"totalMemory"`
	FreeMemory    uint64    `json:"freeMemory"`
	CPUCount      int       `json:"cpuCount"`
	GPU           GPUStatus `json:"gpu"`
	GPUCount      int       `json:"gpuCount"`
	GPUNames      []string  `json:"gpuNames,omitempty"`
	DiskPath      string    `json:"diskPath,omitempty"`
	DiskFreeBytes uint64    `json:"diskFreeBytes,omitempty"`
}

// GPUPresent reports whether a GPU was positively detected.
func (i Info) GPUPresent() bool { return i.GPU == GPUPresent }

// Collector gathers Info. The zero value is usable.
type Collector struct {
	// Runner executes the GPU probe; defaults to procrun.Exec.
	Runner procrun.Runner
	// GPUCommand defaults to nvidia-smi listing device names.
	GPUCommand []string
	// GPUTimeout bounds the GPU probe; defaults to 3s.
	GPUTimeout time.Duration
	// DiskPath, when set, reports free space for the volume holding it.
	DiskPath string
}

var defaultGPUCommand = []string{"nvidia-smi", "--query-gpu=name", "--format=csv,noheader"}

// Collect never fails; fields that cannot be read stay zero.
func (c *Collector) Collect(ctx context.Context) Info {
	info := Info{
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUCount:     runtime.NumCPU(),
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUCount = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemory = vm.Total
		info.FreeMemory = vm.Available
	}
	if c.DiskPath != "" {
		if du, err := disk.UsageWithContext(ctx, c.DiskPath); err == nil {
			info.DiskPath = c.DiskPath
			info.DiskFreeBytes = du.Free
		}
	}
	info.GPU, info.GPUNames = c.probeGPU(ctx)
	info.GPUCount = len(info.GPUNames)
	return info
}

func (c *Collector) probeGPU(ctx context.Context) (GPUStatus, []string) {
	r := c.Runner
	if r == nil {
		r = procrun.Exec{}
	}
	args := c.GPUCommand
	if len(args) == 0 {
		args = defaultGPUCommand
	}
	timeout := c.GPUTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var names []string
	code, err := procrun.Run(ctx, r, args, func(s procrun.Stream, line string) {
		if s == procrun.Stdout {
			names = append(names, strings.TrimSpace(line))
		}
	})
	switch {
	case err != nil || ctx.Err() != nil:
		return GPUUnknown, nil
	case code != 0:
		// Tool present but no usable driver or device.
		return GPUAbsent, nil
	case len(names) == 0:
		return GPUAbsent, nil
	default:
		return GPUPresent, names
	}
}
