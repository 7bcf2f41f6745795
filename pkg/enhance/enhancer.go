package enhance

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// Content is the screened variant of a notification's text.
type Content struct {
	Title      string
	Body       string
	Safe       bool
	Categories []string
}

// Stats reports what the enabled capabilities did since start.
type Stats struct {
	RateLimit     bool `json:"rate_limit"`
	ContentFilter bool `json:"content_filter"`
	Audit         bool `json:"audit"`
	Compression   bool `json:"compression"`

	Checked       int64 `json:"checked"`
	RateLimited   int64 `json:"rate_limited"`
	Blocked       int64 `json:"blocked"`
	Screened      int64 `json:"screened"`
	UnsafeContent int64 `json:"unsafe_content"`
	AuditFailures int64 `json:"audit_failures"`

	Payloads *compress.Stats `json:"payloads,omitempty"`
}

// Enhancer is the contract the orchestrator and transports depend on.
type Enhancer interface {
	// CheckRateLimit counts one request and returns a *notify.RateLimitError
	// when it must be rejected.
	CheckRateLimit(ctx context.Context, userID int64, notifType string) error
	// ScreenContent returns the sanitized text. The error wraps
	// notify.ErrUnsafeContent when the content must not be delivered.
	ScreenContent(ctx context.Context, userID int64, notifType, title, body string) (Content, error)
	// Optimize encodes msg for a bandwidth sensitive channel.
	Optimize(msg notify.Message, channel string) (compress.Payload, error)
	// Cleanup drops audit entries older than retention.
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
	Stats() Stats
}

type noop struct{}

// NoOp returns an Enhancer with every capability disabled.
func NoOp() Enhancer { return noop{} }

func (noop) CheckRateLimit(context.Context, int64, string) error { return nil }

func (noop) ScreenContent(_ context.Context, _ int64, _, title, body string) (Content, error) {
	return Content{Title: title, Body: body, Safe: true}, nil
}

func (noop) Optimize(msg notify.Message, _ string) (compress.Payload, error) {
	return plainPayload(msg)
}

func (noop) Cleanup(context.Context, time.Duration) (int64, error) { return 0, nil }

func (noop) Stats() Stats { return Stats{} }
