package hxglue

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procStatus = `Name:	hxglue
State:	S (sleeping)
VmPeak:	 1290368 kB
VmHWM:	   24576 kB
VmRSS:	   20480 kB
Threads:	9
`

func TestParseProcStatus(t *testing.T) {
	m, ok := parseProcStatus(strings.NewReader(procStatus))
	require.True(t, ok)
	assert.Equal(t, memUsage{RSS: 20480 << 10, Peak: 24576 << 10}, m)
}

func TestParseProcStatus_Missing(t *testing.T) {
	_, ok := parseProcStatus(strings.NewReader("Name:\thxglue\nThreads:\t9\n"))
	assert.False(t, ok)

	_, ok = parseProcStatus(strings.NewReader("VmRSS:\tlots kB\n"))
	assert.False(t, ok)
}

func TestProcessMemory(t *testing.T) {
	m, ok := processMemory()
	if runtime.GOOS != "linux" {
		assert.False(t, ok)
		return
	}
	require.True(t, ok)
	assert.Positive(t, m.RSS)
	assert.GreaterOrEqual(t, m.Peak, m.RSS)
}
