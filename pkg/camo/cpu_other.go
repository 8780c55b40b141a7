//go:build !darwin && !linux

package camo

// detectOptimalWorkers has no core-type information on this platform
func detectOptimalWorkers() int {
	return 0
}
