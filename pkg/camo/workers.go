package camo

import "runtime"

// DefaultWorkers returns the number of contigs to walk in parallel when
// the user does not choose. Hybrid CPUs get one worker per performance core.
func DefaultWorkers() int {
	if n := detectOptimalWorkers(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
