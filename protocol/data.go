package protocol

import (
	"math"
	"strconv"
	"time"
)

// Data is the message payload. Keys are unique; values are whatever JSON
// carries. After decoding, whole numbers are int and fractional ones float64.
type Data map[string]any

func (d Data) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// StringOr returns def when the key is absent or empty.
func (d Data) StringOr(key, def string) string {
	if s := d.String(key); s != "" {
		return s
	}
	return def
}

func (d Data) Int(key string, def int) int {
	switch v := d[key].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (d Data) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Time parses an ISO-8601 value, accepting both zoned and naive UTC forms.
func (d Data) Time(key string) (time.Time, bool) {
	switch v := d[key].(type) {
	case string:
		t, err := ParseTimestamp(v)
		return t, err == nil
	case time.Time:
		return v.UTC(), true
	}
	return time.Time{}, false
}

func (d Data) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
