package compress_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

func newOptimizer(t *testing.T, cfg compress.Config) *compress.Optimizer {
	t.Helper()
	o, err := compress.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func message(body string) notify.Message {
	return notify.Message{
		ID:        "n-1",
		UserID:    42,
		Type:      "comment",
		Title:     "New comment",
		Body:      body,
		Data:      map[string]any{"post_id": 7, "empty": "", "nothing": nil},
		Priority:  notify.PriorityHigh,
		CreatedAt: time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC),
	}
}

func TestOptimizer_CompressesRepetitivePayload(t *testing.T) {
	t.Parallel()

	o := newOptimizer(t, compress.Config{})
	msg := message(strings.Repeat("the same sentence again and again. ", 40))

	p, err := o.Optimize(msg, "web")
	require.NoError(t, err)
	assert.True(t, p.Compressed())
	assert.Equal(t, compress.EncodingZstd, p.Encoding)
	assert.Less(t, len(p.Data), p.OriginalSize*9/10)
	assert.False(t, p.Truncated)

	got, err := o.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.UserID, got.UserID)
	assert.Equal(t, msg.Body, got.Body)
	assert.Equal(t, msg.Priority, got.Priority)
	assert.True(t, msg.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, map[string]any{"post_id": float64(7)}, got.Data)
}

func TestOptimizer_SkipsSmallOrIncompressible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  compress.Config
		body string
	}{
		{name: "below min size", cfg: compress.Config{MinSize: 4096}, body: strings.Repeat("a", 500)},
		{name: "saving below threshold", cfg: compress.Config{MinSaving: 0.99}, body: strings.Repeat("abc", 200)},
		{name: "short message", cfg: compress.Config{}, body: "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := newOptimizer(t, tt.cfg)
			p, err := o.Optimize(message(tt.body), "web")
			require.NoError(t, err)
			assert.False(t, p.Compressed())
			assert.Equal(t, p.OriginalSize, len(p.Data))

			got, err := o.Decode(p)
			require.NoError(t, err)
			assert.Equal(t, tt.body, got.Body)
		})
	}
}

func TestOptimizer_ShortensAndElides(t *testing.T) {
	t.Parallel()

	o := newOptimizer(t, compress.Config{MinSize: 1 << 20})
	msg := message("body")
	msg.Data = nil

	p, err := o.Optimize(msg, "web")
	require.NoError(t, err)

	s := string(p.Data)
	assert.Contains(t, s, `"t":"New comment"`)
	assert.Contains(t, s, `"u":42`)
	assert.NotContains(t, s, `"title"`)
	assert.NotContains(t, s, `"d"`)
}

func TestOptimizer_Truncation(t *testing.T) {
	t.Parallel()

	o := newOptimizer(t, compress.Config{MinSize: 1 << 20})

	t.Run("sms body cut to fit", func(t *testing.T) {
		t.Parallel()
		p, err := o.Optimize(message(strings.Repeat("x", 300)), compress.ChannelSMS)
		require.NoError(t, err)
		assert.True(t, p.Truncated)

		got, err := o.Decode(p)
		require.NoError(t, err)
		assert.Equal(t, "New comment", got.Title)
		assert.Equal(t, 160, utf8.RuneCountInString(got.Title)+utf8.RuneCountInString(got.Body))
		assert.True(t, strings.HasSuffix(got.Body, "…"))
	})

	t.Run("title longer than limit", func(t *testing.T) {
		t.Parallel()
		msg := message("body")
		msg.Title = strings.Repeat("t", 200)
		p, err := o.Optimize(msg, compress.ChannelSMS)
		require.NoError(t, err)

		got, err := o.Decode(p)
		require.NoError(t, err)
		assert.Equal(t, 160, utf8.RuneCountInString(got.Title))
		assert.Empty(t, got.Body)
	})

	t.Run("unknown channel untouched", func(t *testing.T) {
		t.Parallel()
		p, err := o.Optimize(message(strings.Repeat("x", 300)), "web")
		require.NoError(t, err)
		assert.False(t, p.Truncated)
	})
}

func TestOptimizer_Stats(t *testing.T) {
	t.Parallel()

	o := newOptimizer(t, compress.Config{})
	_, err := o.Optimize(message(strings.Repeat("repeat ", 200)), "web")
	require.NoError(t, err)
	_, err = o.Optimize(message("x"), compress.ChannelSMS)
	require.NoError(t, err)

	s := o.Stats()
	assert.Equal(t, int64(2), s.Payloads)
	assert.Equal(t, int64(1), s.Compressed)
	assert.Less(t, s.BytesOut, s.BytesIn)
	assert.Greater(t, s.Ratio, 0.0)
	assert.Less(t, s.Ratio, 1.0)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := compress.New(compress.Config{MinSaving: 1.5})
	assert.ErrorIs(t, err, compress.ErrInvalidConfig)
}

func TestDecode_UnknownEncoding(t *testing.T) {
	t.Parallel()

	o := newOptimizer(t, compress.Config{})
	_, err := o.Decode(compress.Payload{Data: []byte("{}"), Encoding: "brotli"})
	assert.ErrorIs(t, err, compress.ErrUnknownEncoder)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
		cut   bool
	}{
		{"hello", 10, "hello", false},
		{"hello", 0, "hello", false},
		{"hello world", 6, "hello…", true},
		{"привет мир", 4, "при…", true},
		{"abc", 1, "…", true},
	}
	for _, tt := range tests {
		got, cut := compress.Truncate(tt.in, tt.limit)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.cut, cut, tt.in)
	}
}

func TestShortenExpand(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"title": "x",
		"body":  "",
		"data":  map[string]any{"a": nil, "b": map[string]any{}},
		"extra": []string{},
		"keep":  0,
	}
	short := compress.Shorten(in)
	assert.Equal(t, map[string]any{"t": "x", "keep": 0}, short)
	assert.Equal(t, map[string]any{"title": "x", "keep": 0}, compress.Expand(short))
}
