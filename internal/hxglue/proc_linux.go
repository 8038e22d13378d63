//go:build linux

package hxglue

import "os"

func processMemory() (memUsage, bool) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return memUsage{}, false
	}
	defer f.Close()
	return parseProcStatus(f)
}
