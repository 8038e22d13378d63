package swap

import (
	"net/http"
	"sort"
)

// Error statuses whose bodies are rendered into the page instead of being
// dropped. The origin app answers these with user-facing fragments.
var swappableStatuses = map[int]struct{}{
	http.StatusBadRequest:          {},
	http.StatusUnauthorized:        {},
	http.StatusForbidden:           {},
	http.StatusInternalServerError: {},
}

func IsSwappableError(status int) bool {
	_, ok := swappableStatuses[status]
	return ok
}

// SwappableStatuses returns the override set in ascending order.
func SwappableStatuses() []int {
	out := make([]int, 0, len(swappableStatuses))
	for s := range swappableStatuses {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// OverrideErrorSwap forces a swap of known error statuses and clears their
// error flag. Any other status is left as is.
func OverrideErrorSwap(d *Detail) {
	if d == nil || !IsSwappableError(d.Status) {
		return
	}
	d.ShouldSwap = true
	d.IsError = false
}

// Register attaches OverrideErrorSwap to the BeforeSwap event of bus.
func Register(bus *Bus) (unregister func()) {
	return bus.On(BeforeSwap, OverrideErrorSwap)
}
