// Package timefmt renders timestamps the way the UI shows them: a short
// human display form and the value format of a datetime-local input.
package timefmt

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	// DisplayLayout renders e.g. "Mon, Mar 04 2:05 PM".
	DisplayLayout = "Mon, Jan 02 3:04 PM"
	// FormLayout is the value format of <input type="datetime-local">.
	FormLayout = "2006-01-02T15:04"

	// dayjs equivalents of the layouts above, used by the client script.
	DisplayPattern = "ddd, MMM DD h:mm A"
	FormPattern    = "YYYY-MM-DDTHH:mm"

	// JSLayout is the UTC timestamp templates hand to the client script.
	JSLayout = "2006-01-02T15:04:05Z"

	InvalidDate = "Invalid Date"

	// MaxEpochMillis bounds numeric timestamps to the range of a JS Date.
	MaxEpochMillis = 8_640_000_000_000_000
)

var ErrInvalidTime = errors.New("invalid time value")

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	FormLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type Formatter struct {
	// Location is the zone times are shown in and zone-less strings are
	// read in. nil means time.Local.
	Location *time.Location
}

func New(loc *time.Location) Formatter {
	return Formatter{Location: loc}
}

func (f Formatter) loc() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// Parse interprets v as a point in time. Numbers of any integer or float
// kind are milliseconds since the Unix epoch and must lie within
// ±MaxEpochMillis, the range of a JS Date.
//
// Digit-only strings are milliseconds too, unlike dayjs, which reads
// "1709579100000" as a compact YYYYMMDD... date.
func (f Formatter) Parse(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, ErrInvalidTime
		}
		return *t, nil
	case string:
		return f.parseString(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromMillis(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		ms := rv.Uint()
		if ms > MaxEpochMillis {
			return time.Time{}, fmt.Errorf("%w: %d out of range", ErrInvalidTime, ms)
		}
		return fromMillis(int64(ms))
	case reflect.Float32, reflect.Float64:
		ms := rv.Float()
		if math.IsNaN(ms) || math.Abs(ms) > MaxEpochMillis {
			return time.Time{}, fmt.Errorf("%w: %v out of range", ErrInvalidTime, ms)
		}
		return fromMillis(int64(ms))
	}
	return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidTime, v)
}

func fromMillis(ms int64) (time.Time, error) {
	if ms > MaxEpochMillis || ms < -MaxEpochMillis {
		return time.Time{}, fmt.Errorf("%w: %d out of range", ErrInvalidTime, ms)
	}
	return time.UnixMilli(ms), nil
}

func (f Formatter) parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTime
	}
	if isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		return fromMillis(ms)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, f.loc()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func isDigits(s string) bool {
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatTime returns v in DisplayLayout, or InvalidDate.
func (f Formatter) FormatTime(v any) string {
	return f.format(v, DisplayLayout)
}

// FormFormatTime returns v in FormLayout, or InvalidDate.
func (f Formatter) FormFormatTime(v any) string {
	return f.format(v, FormLayout)
}

// JSTime returns v in UTC as JSLayout, or InvalidDate.
func (f Formatter) JSTime(v any) string {
	t, err := f.Parse(v)
	if err != nil {
		return InvalidDate
	}
	return t.UTC().Format(JSLayout)
}

func (f Formatter) format(v any, layout string) string {
	t, err := f.Parse(v)
	if err != nil {
		return InvalidDate
	}
	return t.In(f.loc()).Format(layout)
}

// ParseForm reads the value posted by a datetime-local input.
func (f Formatter) ParseForm(s string) (time.Time, error) {
	t, err := time.ParseInLocation(FormLayout, strings.TrimSpace(s), f.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	return t, nil
}

func (f Formatter) FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime":     f.FormatTime,
		"formFormatTime": f.FormFormatTime,
		"jsTime":         f.JSTime,
	}
}

func FormatTime(v any) string {
	return Formatter{}.FormatTime(v)
}

func FormFormatTime(v any) string {
	return Formatter{}.FormFormatTime(v)
}
