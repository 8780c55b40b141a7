//go:build linux

package camo

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// detectOptimalWorkers counts performance cores on Linux hybrid CPUs.
// It returns 0 when the machine is homogeneous or /proc/cpuinfo is unreadable.
func detectOptimalWorkers() int {
	file, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	type coreKey struct{ pkg, core string }
	maxFreq := make(map[coreKey]float64)
	var key coreKey

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(name) {
		case "processor":
			key = coreKey{}
		case "physical id":
			key.pkg = value
		case "core id":
			key.core = value
		case "cpu MHz":
			freq, err := strconv.ParseFloat(value, 64)
			if err != nil || key.core == "" {
				continue
			}
			if freq > maxFreq[key] {
				maxFreq[key] = freq
			}
		}
	}

	// Fewer than three cores gives no useful frequency spread
	if len(maxFreq) < 3 {
		return 0
	}

	var sum float64
	for _, f := range maxFreq {
		sum += f
	}
	avg := sum / float64(len(maxFreq))

	perf := 0
	for _, f := range maxFreq {
		if f >= avg*0.9 {
			perf++
		}
	}
	if perf > 0 && perf < len(maxFreq) {
		return perf
	}
	return 0
}
