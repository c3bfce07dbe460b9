package senses

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/wisp-agent/wisp/internal/logging"
)

// SystemSense samples host pressure for the snapshot's systemLoad field.
// CPU dominates; memory only matters once it gets tight.
type SystemSense struct{}

func NewSystemSense() *SystemSense {
	return &SystemSense{}
}

// Load returns combined host load, 0-1
func (s *SystemSense) Load() float64 {
	cpuLoad := s.cpuLoad()
	memLoad := s.memLoad()

	load := 0.7*cpuLoad + 0.3*memLoad
	logging.Debug("system", "load=%.2f (cpu=%.2f mem=%.2f)", load, cpuLoad, memLoad)
	return load
}

func (s *SystemSense) cpuLoad() float64 {
	// non-blocking sample: percent since the previous call
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return clamp01(percents[0] / 100)
}

func (s *SystemSense) memLoad() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	used := vm.UsedPercent / 100
	// below 70% memory is free of pressure
	if used < 0.7 {
		return 0
	}
	return clamp01((used - 0.7) / 0.3)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
