package store

import "time"

// Documents are JSON encoded at rest, so numeric fields come back as
// float64 and timestamps travel as epoch milliseconds. The helpers below
// centralize that decoding so callers never touch type switches.

// Millis converts a time to the wire representation used in Fields.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// AsMillis extracts an epoch-millisecond value regardless of whether the
// field was written in-process (int64) or read back from disk (float64).
func AsMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

// FieldTime decodes a millisecond timestamp field. Returns the zero time
// when the field is absent or not a number.
func FieldTime(fields map[string]any, key string) time.Time {
	ms, ok := AsMillis(fields[key])
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func FieldString(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func FieldBool(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

// FieldStrings decodes a string-array field ([]any after JSON decode).
func FieldStrings(fields map[string]any, key string) []string {
	switch arr := fields[key].(type) {
	case []string:
		return arr
	case []any:
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
