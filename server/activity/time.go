package activity

import "time"

// TimeFormat is the wire timestamp layout. Formatting a UTC time with
// it yields an explicit "+00:00" offset rather than "Z"; timestamps are
// always normalized to UTC on output regardless of where they came
// from, so producers and consumers in different timezones agree.
const TimeFormat = "2006-01-02T15:04:05-07:00"

// ISO8601 formats a timestamp for the wire, normalized to UTC.
func ISO8601(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
