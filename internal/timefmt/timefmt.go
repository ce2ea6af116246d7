// Package timefmt renders elapsed durations in the fixed-field form GitLab
// accepts for spent time ("1h2m3s").
package timefmt

import (
	"strconv"
	"strings"
	"time"
)

// Spent formats d as hours, minutes, and whole seconds. Every field is always
// present, so ten seconds is "0h0m10s". Sub-second remainders are truncated and
// negative durations render as zero. With pretty set, fields are separated by a
// space.
func Spent(d time.Duration, pretty bool) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	sep := ""
	if pretty {
		sep = " "
	}
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(hours), 10))
	b.WriteString("h")
	b.WriteString(sep)
	b.WriteString(strconv.FormatInt(int64(minutes), 10))
	b.WriteString("m")
	b.WriteString(sep)
	b.WriteString(strconv.FormatInt(int64(seconds), 10))
	b.WriteString("s")
	return b.String()
}

// SpentMillis is Spent for a millisecond count.
func SpentMillis(ms int64, pretty bool) string {
	return Spent(time.Duration(ms)*time.Millisecond, pretty)
}
