package swap

import "net/http"

// EventName identifies an htmx lifecycle event.
type EventName string

const (
	// BeforeSwap fires after a response arrives and before htmx decides
	// whether to put its body into the page.
	BeforeSwap EventName = "htmx:beforeSwap"
)

// Detail is the mutable descriptor handed to BeforeSwap handlers.
// Handlers change the outcome only by writing ShouldSwap and IsError.
type Detail struct {
	Status int

	// ShouldSwap controls whether the response body replaces the target.
	ShouldSwap bool
	// IsError marks the response as failed for htmx error events.
	IsError bool

	Path   string
	Header http.Header
}

// NewDetail returns a Detail with the defaults htmx applies before any
// handler runs.
func NewDetail(status int, header http.Header, path string) *Detail {
	return &Detail{
		Status:     status,
		ShouldSwap: status >= 200 && status < 400 && status != http.StatusNoContent,
		IsError:    status >= 400,
		Path:       path,
		Header:     header,
	}
}
