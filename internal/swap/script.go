package swap

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	"hxglue/internal/timefmt"
)

const scriptSource = `// generated by hxglue, do not edit
document.addEventListener("{{.Event}}", (e) => {
    if ([{{.Statuses}}].includes(e.detail.xhr.status)) {
        e.detail.shouldSwap = true
        e.detail.isError = false
    }
})
{{- if .Helpers}}

function formatTime(t) {
    return dayjs(t).format("{{js .DisplayPattern}}")
}

function formFormatTime(t) {
    return dayjs(t).format("{{js .FormPattern}}")
}
{{- end}}
`

var scriptTmpl = template.Must(template.New("hxglue.js").Parse(scriptSource))

type ScriptOptions struct {
	// Helpers adds the formatTime and formFormatTime globals. They expect
	// dayjs to be loaded on the page.
	Helpers bool
}

// Script renders the browser side of the swap override so the status list
// and format patterns cannot drift from the Go side.
func Script(opts ScriptOptions) ([]byte, error) {
	codes := SwappableStatuses()
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, strconv.Itoa(c))
	}

	var buf bytes.Buffer
	err := scriptTmpl.Execute(&buf, struct {
		Event          EventName
		Statuses       string
		Helpers        bool
		DisplayPattern string
		FormPattern    string
	}{
		Event:          BeforeSwap,
		Statuses:       strings.Join(parts, ", "),
		Helpers:        opts.Helpers,
		DisplayPattern: timefmt.DisplayPattern,
		FormPattern:    timefmt.FormPattern,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
