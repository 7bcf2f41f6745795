package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// NotificationData fills the fallback notification email.
type NotificationData struct {
	ProductName string
	Username    string
	Title       string
	Body        string
	ActionURL   string
	SettingsURL string
}

// Notification is the HTML body used when a notification falls back to
// email. Every dynamic value is escaped and links pass templ's URL
// sanitizer.
func Notification(d NotificationData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(d.Title) + `</title></head>`)
		b.WriteString(`<body style="margin:0;padding:0;background:#f4f5f7;font-family:Helvetica,Arial,sans-serif;">`)
		b.WriteString(`<table role="presentation" width="100%" cellpadding="0" cellspacing="0"><tr><td align="center" style="padding:24px;">`)
		b.WriteString(`<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">`)
		b.WriteString(`<tr><td style="font-size:13px;color:#6b7280;padding-bottom:16px;">` + templ.EscapeString(d.ProductName) + `</td></tr>`)
		if d.Username != "" {
			b.WriteString(`<tr><td style="font-size:15px;color:#111827;padding-bottom:8px;">Hi ` + templ.EscapeString(d.Username) + `,</td></tr>`)
		}
		if d.Title != "" {
			b.WriteString(`<tr><td style="font-size:20px;font-weight:bold;color:#111827;padding-bottom:12px;">` + templ.EscapeString(d.Title) + `</td></tr>`)
		}
		if d.Body != "" {
			b.WriteString(`<tr><td style="font-size:15px;line-height:22px;color:#374151;padding-bottom:24px;">` + templ.EscapeString(d.Body) + `</td></tr>`)
		}
		if d.ActionURL != "" {
			b.WriteString(`<tr><td><a href="` + templ.EscapeString(string(templ.URL(d.ActionURL))) + `" style="display:inline-block;background:#2563eb;color:#ffffff;text-decoration:none;padding:12px 20px;border-radius:6px;font-size:15px;">View</a></td></tr>`)
		}
		if d.SettingsURL != "" {
			b.WriteString(`<tr><td style="font-size:12px;color:#9ca3af;padding-top:32px;">You receive this email because notifications are enabled for your account. <a href="` + templ.EscapeString(string(templ.URL(d.SettingsURL))) + `" style="color:#6b7280;">Manage preferences</a></td></tr>`)
		}
		b.WriteString(`</table></td></tr></table></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// NotificationText is the plain text alternative of Notification.
func NotificationText(d NotificationData) string {
	var b strings.Builder
	if d.Username != "" {
		b.WriteString("Hi " + d.Username + ",\n\n")
	}
	if d.Title != "" {
		b.WriteString(d.Title + "\n\n")
	}
	if d.Body != "" {
		b.WriteString(d.Body + "\n\n")
	}
	if d.ActionURL != "" {
		b.WriteString("View: " + d.ActionURL + "\n")
	}
	if d.SettingsURL != "" {
		b.WriteString("\nManage preferences: " + d.SettingsURL + "\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
