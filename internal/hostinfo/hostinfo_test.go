package hostinfo

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"testing"

	"medmodeld/internal/procrun"
)

func TestCollectGPUTriState(t *testing.T) {
	cases := []struct {
		name   string
		result procrun.FakeResult
		want   GPUStatus
		count  int
	}{
		{"tool missing", procrun.FakeResult{Err: fmt.Errorf("start nvidia-smi: %w", exec.ErrNotFound)}, GPUUnknown, 0},
		{"two devices", procrun.FakeResult{Stdout: "NVIDIA RTX 4090\nNVIDIA A100\n"}, GPUPresent, 2},
		{"no devices", procrun.FakeResult{}, GPUAbsent, 0},
		{"driver failure", procrun.FakeResult{ExitCode: 9, Stdout: "NVIDIA-SMI has failed\n"}, GPUAbsent, 0},
	}
	for _, tc := range cases {
		res := tc.result
		c := &Collector{Runner: &procrun.Fake{Handler: func([]string) procrun.FakeResult { return res }}}
		info := c.Collect(context.Background())
		if info.GPU != tc.want || info.GPUCount != tc.count {
			t.Fatalf("%s: got %s/%d, want %s/%d", tc.name, info.GPU, info.GPUCount, tc.want, tc.count)
		}
		if info.GPUPresent() != (tc.want == GPUPresent) {
			t.Fatalf("%s: GPUPresent mismatch", tc.name)
		}
	}
}

func TestCollectGPUTimeoutIsUnknown(t *testing.T) {
	f := &procrun.Fake{Gate: make(chan struct{})}
	c := &Collector{Runner: f, GPUTimeout: 1}
	if got := c.Collect(context.Background()).GPU; got != GPUUnknown {
		t.Fatalf("want unknown on timeout, got %s", got)
	}
}

func TestCollectHostFields(t *testing.T) {
	c := &Collector{Runner: &procrun.Fake{}, DiskPath: t.TempDir()}
	info := c.Collect(context.Background())
	if info.Platform != runtime.GOOS || info.Architecture != runtime.GOARCH {
		t.Fatalf("platform fields: %+v", info)
	}
	if info.CPUCount < 1 {
		t.Fatalf("cpu count: %d", info.CPUCount)
	}
	if runtime.GOOS == "linux" && info.TotalMemory == 0 {
		t.Fatalf("expected total memory on linux")
	}
}

func TestCollectUsesConfiguredCommand(t *testing.T) {
	f := &procrun.Fake{}
	c := &Collector{Runner: f, GPUCommand: []string{"rocm-smi", "--showproductname"}}
	c.Collect(context.Background())
	calls := f.Calls()
	if len(calls) != 1 || calls[0][0] != "rocm-smi" {
		t.Fatalf("calls: %v", calls)
	}
}
