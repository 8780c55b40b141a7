//go:build darwin

package camo

import "syscall"

// detectOptimalWorkers returns the performance core count on Apple Silicon,
// falling back to the physical core count
func detectOptimalWorkers() int {
	for _, name := range []string{"hw.perflevel0.physicalcpu", "hw.physicalcpu"} {
		if n := sysctlInt(name); n > 0 {
			return n
		}
	}
	return 0
}

// sysctlInt decodes a little-endian integer sysctl value
func sysctlInt(name string) int {
	raw, err := syscall.Sysctl(name)
	if err != nil || len(raw) == 0 {
		return 0
	}
	n := int(raw[0])
	if len(raw) > 1 {
		n |= int(raw[1]) << 8
	}
	return n
}
