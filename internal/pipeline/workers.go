package pipeline

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/mem"
)

// subjectMemory is the working set assumed for one subject in flight: a
// fully loaded recording plus its epoch tensor.
const subjectMemory = 512 << 20

// autoWorkers sizes the worker pool from available memory and physical
// core count.
func autoWorkers() int {
	workers := cpuid.CPU.PhysicalCores
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	vm, err := mem.VirtualMemory()
	if err == nil && vm.Available > 0 {
		byMemory := int(vm.Available / subjectMemory)
		workers = min(workers, byMemory)
	}
	return max(workers, 1)
}

// workerCount resolves the configured worker count against the number of
// subjects to process.
func workerCount(configured, subjects int) int {
	workers := configured
	if workers <= 0 {
		workers = autoWorkers()
	}
	return max(min(workers, subjects), 1)
}
