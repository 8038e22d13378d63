//go:build !linux

package hxglue

func processMemory() (memUsage, bool) { return memUsage{}, false }
