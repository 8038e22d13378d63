package hxglue

import "net/http"

// originResponse is a fully buffered response from the origin app.
type originResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decision is one before-swap outcome for an htmx request.
type Decision struct {
	At        int64  `json:"at"` // unix nanoseconds
	RequestID string `json:"requestId"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`

	ShouldSwap bool `json:"shouldSwap"`
	IsError    bool `json:"isError"`

	// Overridden is set when a handler turned a dropped response into a swap.
	Overridden bool `json:"overridden"`
}

// StatusCounters aggregates decisions for a single response status.
type StatusCounters struct {
	Overridden uint64 `json:"overridden"`
	Passed     uint64 `json:"passed"`
	LastAt     int64  `json:"lastAt"` // unix nanoseconds
}
