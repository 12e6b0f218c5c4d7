package gcloud

import (
	"strconv"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
)

// Helpers for the field-by-field conversion of wire records. Wire records
// carry times and large integers as strings; an empty string means unset.

// ParseTime parses an RFC 3339 timestamp.
func ParseTime(record, field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, apierr.Conversion(record, field, value, err)
	}
	return t, nil
}

// FormatTime is the inverse of ParseTime.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Millis converts milliseconds since the epoch; zero means unset.
func Millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

// ToMillis is the inverse of Millis.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / int64(time.Millisecond)
}

// ParseInt parses a decimal integer string.
func ParseInt(record, field, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, apierr.Conversion(record, field, value, err)
	}
	return n, nil
}

// CopyLabels returns an independent copy of m, nil when m is empty.
func CopyLabels(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
