package hxglue

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// memUsage is the resident memory of the process, current and peak.
type memUsage struct {
	RSS  uint64
	Peak uint64
}

// parseProcStatus reads VmRSS and VmHWM from /proc/<pid>/status content.
// Both are reported in kB.
func parseProcStatus(r io.Reader) (memUsage, bool) {
	var m memUsage
	var seen bool
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, rest, found := strings.Cut(sc.Text(), ":")
		if !found {
			continue
		}
		var dst *uint64
		switch name {
		case "VmRSS":
			dst = &m.RSS
		case "VmHWM":
			dst = &m.Peak
		default:
			continue
		}
		kb, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimSpace(rest), " kB"), 10, 64)
		if err != nil {
			return memUsage{}, false
		}
		*dst = kb << 10
		if name == "VmRSS" {
			seen = true
		}
	}
	if sc.Err() != nil || !seen {
		return memUsage{}, false
	}
	return m, true
}
