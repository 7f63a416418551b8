// Package hostinfo describes the machine a benchmark run was taken on.
package hostinfo

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/bingoohuang/walkperf/pkg/util"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

type Info struct {
	Hostname string       `json:"hostname"`
	Platform string       `json:"platform"`
	CPUModel string       `json:"cpuModel,omitempty"`
	CPUs     int          `json:"cpus"`
	MemGB    util.Float64 `json:"memGB"`
	Load1    util.Float64 `json:"load1"`
	Load5    util.Float64 `json:"load5"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %d cpus, %v GB)", i.Hostname, i.Platform, i.CPUs, float64(i.MemGB))
}

func notImplemented(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not implemented")
}

// Gather collects the host description. Metrics the platform does not provide are left zero.
func Gather() (*Info, error) {
	info := &Info{Platform: runtime.GOOS + "/" + runtime.GOARCH}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform + " " + h.PlatformVersion + " " + runtime.GOARCH
	} else if !notImplemented(err) {
		return nil, fmt.Errorf("error getting host info: %w", err)
	}

	numCPUs, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("error getting cpu counts: %w", err)
	}
	info.CPUs = numCPUs

	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("error getting virtual memory info: %w", err)
	}
	info.MemGB = util.Float64(float64(vm.Total) / 1e9)

	avg, err := load.Avg()
	if err != nil && !notImplemented(err) {
		return nil, fmt.Errorf("error getting load average: %w", err)
	}
	if avg != nil {
		info.Load1 = util.Float64(avg.Load1)
		info.Load5 = util.Float64(avg.Load5)
	}

	return info, nil
}
