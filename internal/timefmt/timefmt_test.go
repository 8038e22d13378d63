package timefmt

import (
	"bytes"
	"html/template"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var est = time.FixedZone("EST", -5*60*60)

type millis int64

func TestFormatTime(t *testing.T) {
	f := New(est)
	at := time.Date(2024, time.March, 4, 14, 5, 0, 0, est)

	tests := []struct {
		name    string
		in      any
		display string
		form    string
	}{
		{"time", at, "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"time pointer", &at, "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"millis int64", at.UnixMilli(), "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"millis float", float64(at.UnixMilli()), "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"millis uint64", uint64(at.UnixMilli()), "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"millis uint", uint(at.UnixMilli()), "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"millis named int64", millis(at.UnixMilli()), "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"millis int8", int8(0), "Wed, Dec 31 7:00 PM", "1969-12-31T19:00"},
		{"millis int16", int16(1000), "Wed, Dec 31 7:00 PM", "1969-12-31T19:00"},
		{"millis uint8", uint8(0), "Wed, Dec 31 7:00 PM", "1969-12-31T19:00"},
		{"millis uint16", uint16(60000), "Wed, Dec 31 7:01 PM", "1969-12-31T19:01"},
		{"millis float32", float32(3_600_000), "Wed, Dec 31 8:00 PM", "1969-12-31T20:00"},
		{"negative millis", int64(-3_600_000), "Wed, Dec 31 6:00 PM", "1969-12-31T18:00"},
		{"millis string", "1709579100000", "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"local string", "2024-03-04T14:05:00", "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"form string", "2024-03-04T14:05", "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"utc string", "2024-03-04T19:05:00Z", "Mon, Mar 04 2:05 PM", "2024-03-04T14:05"},
		{"date only", "2024-03-04", "Mon, Mar 04 12:00 AM", "2024-03-04T00:00"},
		{"morning", time.Date(2024, time.March, 9, 9, 30, 0, 0, est), "Sat, Mar 09 9:30 AM", "2024-03-09T09:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.display, f.FormatTime(tt.in))
			assert.Equal(t, tt.form, f.FormFormatTime(tt.in))
		})
	}
}

func TestFormatTime_Invalid(t *testing.T) {
	f := New(est)
	var nilTime *time.Time

	inputs := []any{
		nil, "", "not a date", "2024-13-45", nilTime, struct{}{},
		1e300, -1e300, math.Inf(1), math.NaN(), float32(math.Inf(-1)),
		float64(MaxEpochMillis + 1),
		int64(math.MaxInt64), int64(math.MinInt64),
		uint64(math.MaxUint64),
		"99999999999999999", "-99999999999999999", "99999999999999999999",
	}
	for _, in := range inputs {
		assert.Equal(t, InvalidDate, f.FormatTime(in), "input %#v", in)
		assert.Equal(t, InvalidDate, f.FormFormatTime(in), "input %#v", in)
	}
}

func TestParse_Error(t *testing.T) {
	_, err := New(est).Parse([]byte("2024"))
	require.ErrorIs(t, err, ErrInvalidTime)

	_, err = New(est).Parse(1e300)
	require.ErrorIs(t, err, ErrInvalidTime)
}

func TestParse_Bounds(t *testing.T) {
	f := New(time.UTC)

	got, err := f.Parse(int64(MaxEpochMillis))
	require.NoError(t, err)
	assert.Equal(t, 275760, got.UTC().Year())

	got, err = f.Parse(float64(-MaxEpochMillis))
	require.NoError(t, err)
	assert.Equal(t, -271821, got.UTC().Year())

	_, err = f.Parse(uint64(MaxEpochMillis + 1))
	require.ErrorIs(t, err, ErrInvalidTime)
}

func TestParseForm(t *testing.T) {
	f := New(est)

	got, err := f.ParseForm(" 2024-03-04T14:05 ")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, time.March, 4, 14, 5, 0, 0, est)))
	assert.Equal(t, "2024-03-04T14:05", f.FormFormatTime(got))

	_, err = f.ParseForm("03/04/2024 2:05 PM")
	require.ErrorIs(t, err, ErrInvalidTime)
}

func TestFormatter_DefaultsToLocal(t *testing.T) {
	at := time.Date(2024, time.March, 4, 14, 5, 0, 0, time.Local)

	assert.Equal(t, "Mon, Mar 04 2:05 PM", FormatTime(at))
	assert.Equal(t, "2024-03-04T14:05", FormFormatTime(at))
}

func TestFuncMap(t *testing.T) {
	tmpl := template.Must(template.New("t").
		Funcs(New(est).FuncMap()).
		Parse(`<time datetime="{{jsTime .}}">{{formatTime .}}</time><input value="{{formFormatTime .}}">`))

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, time.Date(2024, time.March, 4, 14, 5, 0, 0, est)))
	assert.Equal(t, `<time datetime="2024-03-04T19:05:00Z">Mon, Mar 04 2:05 PM</time><input value="2024-03-04T14:05">`, buf.String())
}

func TestJSTime(t *testing.T) {
	f := New(est)

	assert.Equal(t, "2024-03-04T19:05:00Z", f.JSTime("2024-03-04T14:05"))
	assert.Equal(t, "1970-01-01T00:00:00Z", f.JSTime(int64(0)))
	assert.Equal(t, InvalidDate, f.JSTime("not a date"))
}
