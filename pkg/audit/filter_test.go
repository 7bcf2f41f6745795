package audit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifycore/pkg/audit"
)

func TestMetadataFilter_Defaults(t *testing.T) {
	t.Parallel()

	f := audit.NewMetadataFilter()
	out := f.Filter(map[string]any{
		"password":      "hunter2",
		"device_token":  "tok-1",
		"refresh_token": "tok-2",
		"email":         "User@Example.com",
		"sender_email":  "a@b.io",
		"phone":         "1234567890",
		"type":          "like",
		"note":          "reported by bob@example.org today",
		"nested":        map[string]any{"api_key": "k", "count": 3},
	})

	assert.NotContains(t, out, "password")
	assert.NotContains(t, out, "device_token")
	assert.NotContains(t, out, "refresh_token")
	assert.True(t, strings.HasPrefix(out["email"].(string), "sha256:"))
	assert.True(t, strings.HasPrefix(out["sender_email"].(string), "sha256:"))
	assert.Equal(t, "12******90", out["phone"])
	assert.Equal(t, "like", out["type"])
	assert.NotContains(t, out["note"], "bob@example.org")
	assert.Contains(t, out["note"], "reported by sha256:")
	assert.Equal(t, map[string]any{"count": 3}, out["nested"])
}

func TestMetadataFilter_HashIsStable(t *testing.T) {
	t.Parallel()

	f := audit.NewMetadataFilter()
	a := f.Filter(map[string]any{"email": "User@Example.com"})
	b := f.Filter(map[string]any{"email": " user@example.com"})
	assert.Equal(t, a["email"], b["email"])
}

func TestMetadataFilter_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		opts  []audit.FilterOption
		input map[string]any
		want  map[string]any
	}{
		{
			name:  "allowed field passes",
			opts:  []audit.FilterOption{audit.WithAllowedField("email")},
			input: map[string]any{"email": "a@b.io"},
			want:  map[string]any{"email": "a@b.io"},
		},
		{
			name:  "custom rule",
			opts:  []audit.FilterOption{audit.WithFieldRule("account", audit.FilterActionMask)},
			input: map[string]any{"account": "ACC12345678"},
			want:  map[string]any{"account": "AC*******78"},
		},
		{
			name:  "wildcard prefix rule",
			opts:  []audit.FilterOption{audit.WithFieldRule("internal_*", audit.FilterActionRemove)},
			input: map[string]any{"internal_id": 1, "id": 2},
			want:  map[string]any{"id": 2},
		},
		{
			name:  "value scan disabled",
			opts:  []audit.FilterOption{audit.WithoutValueScan()},
			input: map[string]any{"note": "x@y.io"},
			want:  map[string]any{"note": "x@y.io"},
		},
		{
			name:  "short values fully masked",
			input: map[string]any{"phone": "123"},
			want:  map[string]any{"phone": "***"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, audit.NewMetadataFilter(tt.opts...).Filter(tt.input))
		})
	}
}

func TestMetadataFilter_Nil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, audit.NewMetadataFilter().Filter(nil))
}
