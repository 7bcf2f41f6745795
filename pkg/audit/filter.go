package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// FilterAction is what happens to a matched metadata value.
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

// Keys are compared lowercased. A leading or trailing "*" matches any
// prefix or suffix.
var defaultPIIFields = map[string]FilterAction{
	"password":      FilterActionRemove,
	"secret":        FilterActionRemove,
	"*token":        FilterActionRemove,
	"api_key":       FilterActionRemove,
	"authorization": FilterActionRemove,
	"device_token":  FilterActionRemove,
	"email":         FilterActionHash,
	"*_email":       FilterActionHash,
	"recipient":     FilterActionHash,
	"ip":            FilterActionHash,
	"phone":         FilterActionMask,
	"phone_number":  FilterActionMask,
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// MetadataFilter scrubs personal data from event metadata.
type MetadataFilter struct {
	rules       map[string]FilterAction
	allowed     map[string]bool
	scanStrings bool
}

// FilterOption configures a MetadataFilter.
type FilterOption func(*MetadataFilter)

// WithFieldRule adds or overrides the action for a field.
func WithFieldRule(field string, action FilterAction) FilterOption {
	return func(f *MetadataFilter) {
		f.rules[strings.ToLower(field)] = action
	}
}

// WithAllowedField lets a field through untouched.
func WithAllowedField(field string) FilterOption {
	return func(f *MetadataFilter) {
		f.allowed[strings.ToLower(field)] = true
	}
}

// WithoutValueScan disables hashing of email addresses found inside
// otherwise unfiltered string values.
func WithoutValueScan() FilterOption {
	return func(f *MetadataFilter) {
		f.scanStrings = false
	}
}

// NewMetadataFilter returns a filter preloaded with the default PII rules.
func NewMetadataFilter(opts ...FilterOption) *MetadataFilter {
	f := &MetadataFilter{
		rules:       make(map[string]FilterAction, len(defaultPIIFields)),
		allowed:     make(map[string]bool),
		scanStrings: true,
	}
	for k, v := range defaultPIIFields {
		f.rules[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns a scrubbed copy of metadata. Nested maps are filtered
// recursively.
func (f *MetadataFilter) Filter(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}

	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if f.allowed[lower] {
			out[key] = value
			continue
		}

		if action, ok := f.match(lower); ok {
			if v, keep := apply(action, value); keep {
				out[key] = v
			}
			continue
		}

		switch v := value.(type) {
		case map[string]any:
			out[key] = f.Filter(v)
		case string:
			if f.scanStrings {
				v = emailPattern.ReplaceAllStringFunc(v, hashString)
			}
			out[key] = v
		default:
			out[key] = value
		}
	}
	return out
}

func (f *MetadataFilter) match(key string) (FilterAction, bool) {
	if action, ok := f.rules[key]; ok {
		return action, true
	}
	for pattern, action := range f.rules {
		switch {
		case strings.HasPrefix(pattern, "*") && strings.HasSuffix(key, pattern[1:]):
			return action, true
		case strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, pattern[:len(pattern)-1]):
			return action, true
		}
	}
	return "", false
}

func apply(action FilterAction, value any) (any, bool) {
	switch action {
	case FilterActionRemove:
		return nil, false
	case FilterActionHash:
		return hashString(fmt.Sprint(value)), true
	case FilterActionMask:
		return mask(fmt.Sprint(value)), true
	default:
		return value, true
	}
}

// hashString returns a short stable digest so equal values stay
// correlatable across events.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return "sha256:" + hex.EncodeToString(sum[:8])
}

func mask(s string) string {
	n := len(s)
	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	default:
		return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
	}
}
