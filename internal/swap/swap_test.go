package swap

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetail_Defaults(t *testing.T) {
	tests := []struct {
		status     int
		shouldSwap bool
		isError    bool
	}{
		{200, true, false},
		{204, false, false},
		{302, true, false},
		{400, false, true},
		{404, false, true},
		{500, false, true},
		{502, false, true},
	}
	for _, tt := range tests {
		d := NewDetail(tt.status, nil, "/")
		assert.Equal(t, tt.shouldSwap, d.ShouldSwap, "status %d shouldSwap", tt.status)
		assert.Equal(t, tt.isError, d.IsError, "status %d isError", tt.status)
	}
}

func TestOverrideErrorSwap_Swappable(t *testing.T) {
	for _, status := range []int{400, 401, 403, 500} {
		d := NewDetail(status, nil, "/event/1")
		OverrideErrorSwap(d)
		assert.True(t, d.ShouldSwap, "status %d", status)
		assert.False(t, d.IsError, "status %d", status)
	}
}

func TestOverrideErrorSwap_OtherStatusesUntouched(t *testing.T) {
	for _, status := range []int{100, 200, 201, 204, 301, 404, 409, 422, 502, 503} {
		for _, start := range []Detail{
			{ShouldSwap: false, IsError: false},
			{ShouldSwap: true, IsError: true},
			{ShouldSwap: true, IsError: false},
			{ShouldSwap: false, IsError: true},
		} {
			d := start
			d.Status = status
			want := d

			OverrideErrorSwap(&d)
			if diff := cmp.Diff(want, d); diff != "" {
				t.Fatalf("status %d mutated (-want +got):\n%s", status, diff)
			}

			OverrideErrorSwap(&d)
			if diff := cmp.Diff(want, d); diff != "" {
				t.Fatalf("status %d mutated on second call (-want +got):\n%s", status, diff)
			}
		}
	}
}

func TestOverrideErrorSwap_Nil(t *testing.T) {
	assert.NotPanics(t, func() { OverrideErrorSwap(nil) })
}

func TestSwappableStatuses(t *testing.T) {
	assert.Equal(t, []int{400, 401, 403, 500}, SwappableStatuses())

	got := SwappableStatuses()
	got[0] = 999
	assert.False(t, IsSwappableError(999))
	assert.True(t, IsSwappableError(http.StatusBadRequest))
}

func TestRegister(t *testing.T) {
	bus := NewBus()
	unregister := Register(bus)
	require.Equal(t, 1, bus.Len(BeforeSwap))

	d := NewDetail(401, nil, "/")
	bus.Dispatch(BeforeSwap, d)
	assert.True(t, d.ShouldSwap)
	assert.False(t, d.IsError)

	d = NewDetail(200, nil, "/")
	bus.Dispatch(BeforeSwap, d)
	assert.True(t, d.ShouldSwap)
	assert.False(t, d.IsError)

	unregister()
	unregister()
	assert.Equal(t, 0, bus.Len(BeforeSwap))

	d = NewDetail(401, nil, "/")
	bus.Dispatch(BeforeSwap, d)
	assert.False(t, d.ShouldSwap)
	assert.True(t, d.IsError)
}

func TestBus_Order(t *testing.T) {
	bus := NewBus()
	var calls []string

	bus.On(BeforeSwap, func(*Detail) { calls = append(calls, "first") })
	off := bus.On(BeforeSwap, func(*Detail) { calls = append(calls, "second") })
	bus.On(BeforeSwap, func(*Detail) { calls = append(calls, "third") })
	bus.On("htmx:afterSwap", func(*Detail) { calls = append(calls, "other") })

	bus.Dispatch(BeforeSwap, NewDetail(200, nil, "/"))
	assert.Equal(t, []string{"first", "second", "third"}, calls)

	calls = nil
	off()
	bus.Dispatch(BeforeSwap, NewDetail(200, nil, "/"))
	assert.Equal(t, []string{"first", "third"}, calls)
}

func TestBus_HandlerSeesEarlierMutation(t *testing.T) {
	bus := NewBus()
	Register(bus)

	var seen Detail
	bus.On(BeforeSwap, func(d *Detail) { seen = *d })

	bus.Dispatch(BeforeSwap, NewDetail(403, nil, "/"))
	assert.True(t, seen.ShouldSwap)
	assert.False(t, seen.IsError)
}

func TestBus_UnsubscribeDuringDispatch(t *testing.T) {
	bus := NewBus()
	var off func()
	n := 0
	off = bus.On(BeforeSwap, func(*Detail) {
		n++
		off()
	})

	bus.Dispatch(BeforeSwap, NewDetail(200, nil, "/"))
	bus.Dispatch(BeforeSwap, NewDetail(200, nil, "/"))
	assert.Equal(t, 1, n)
}

func TestBus_NilInputs(t *testing.T) {
	bus := NewBus()
	off := bus.On(BeforeSwap, nil)
	off()
	assert.Equal(t, 0, bus.Len(BeforeSwap))
	assert.NotPanics(t, func() { bus.Dispatch(BeforeSwap, nil) })
}

func TestBus_Concurrent(t *testing.T) {
	bus := NewBus()
	Register(bus)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			off := bus.On(BeforeSwap, func(*Detail) {})
			status := 200
			if i%2 == 0 {
				status = 500
			}
			d := NewDetail(status, nil, "/")
			bus.Dispatch(BeforeSwap, d)
			assert.True(t, d.ShouldSwap)
			assert.False(t, d.IsError)
			off()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, bus.Len(BeforeSwap))
}

func TestScript(t *testing.T) {
	b, err := Script(ScriptOptions{Helpers: true})
	require.NoError(t, err)
	js := string(b)

	assert.Contains(t, js, `document.addEventListener("htmx:beforeSwap", (e) => {`)
	assert.Contains(t, js, `if ([400, 401, 403, 500].includes(e.detail.xhr.status)) {`)
	assert.Contains(t, js, `e.detail.shouldSwap = true`)
	assert.Contains(t, js, `e.detail.isError = false`)
	assert.Contains(t, js, `return dayjs(t).format("ddd, MMM DD h:mm A")`)
	assert.Contains(t, js, `return dayjs(t).format("YYYY-MM-DDTHH:mm")`)
}

func TestScript_WithoutHelpers(t *testing.T) {
	b, err := Script(ScriptOptions{})
	require.NoError(t, err)
	js := string(b)

	assert.Contains(t, js, "htmx:beforeSwap")
	assert.False(t, strings.Contains(js, "dayjs"), "helpers rendered:\n%s", js)
}
