package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/notifycore/pkg/email/templates"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// Dispatcher renders notifications into emails and hands them to a sender.
// It implements notify.EmailDispatcher.
type Dispatcher struct {
	sender EmailSender
	cfg    Config
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher wraps sender.
func NewDispatcher(sender EmailSender, cfg Config, opts ...DispatcherOption) *Dispatcher {
	if sender == nil {
		panic("email: sender cannot be nil")
	}
	d := &Dispatcher{sender: sender, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewSender picks Postmark when tokens are configured and DevSender otherwise.
func NewSender(cfg Config) (EmailSender, error) {
	if cfg.UsePostmark() {
		return NewPostmarkClient(cfg)
	}
	return NewDevSender(cfg.DevDir), nil
}

func (d *Dispatcher) SendEmail(ctx context.Context, msg notify.Email) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}

	data := templates.NotificationData{
		ProductName: d.cfg.ProductName,
		Username:    msg.Username,
		Title:       msg.Subject,
		Body:        msg.Body,
		ActionURL:   msg.ActionURL,
		SettingsURL: d.cfg.SettingsURL,
	}
	html, err := templates.Render(ctx, templates.Notification(data))
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("render: %w", err))
	}

	subject := msg.Subject
	if subject == "" {
		subject = "New notification"
	}
	if d.cfg.ProductName != "" {
		subject = fmt.Sprintf("[%s] %s", d.cfg.ProductName, subject)
	}

	err = d.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   msg.To,
		Subject:  subject,
		BodyHTML: html,
		BodyText: templates.NotificationText(data),
		Tag:      msg.Type,
	})
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "fallback email failed",
			logger.Component("email"),
			logger.NotificationType(msg.Type),
			logger.Error(err),
		)
		return err
	}
	return nil
}
