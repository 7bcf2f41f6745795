package compress

import (
	"reflect"
	"strings"
	"unicode/utf8"
)

var shortNames = map[string]string{
	"id":         "i",
	"user_id":    "u",
	"type":       "ty",
	"title":      "t",
	"body":       "b",
	"data":       "d",
	"priority":   "p",
	"created_at": "c",
}

var longNames = func() map[string]string {
	m := make(map[string]string, len(shortNames))
	for k, v := range shortNames {
		m[v] = k
	}
	return m
}()

// Shorten renames known top-level fields and drops null and empty values.
// Nested maps are pruned but keep their keys.
func Shorten(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isEmpty(v) {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = prune(nested)
			if len(v.(map[string]any)) == 0 {
				continue
			}
		}
		if short, ok := shortNames[k]; ok {
			k = short
		}
		out[k] = v
	}
	return out
}

// Expand restores the long field names produced by Shorten.
func Expand(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if long, ok := longNames[k]; ok {
			k = long
		}
		out[k] = v
	}
	return out
}

func prune(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isEmpty(v) {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = prune(nested)
			if len(v.(map[string]any)) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Truncate caps s at limit runes, ending with an ellipsis when cut.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	if limit == 1 {
		return "…", true
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…", true
}
