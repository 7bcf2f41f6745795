// Package email delivers the email fallback of the notification pipeline.
//
// Dispatcher implements notify.EmailDispatcher: it renders the notification
// with the templ component in the templates subpackage and passes the
// result to an EmailSender. Two senders exist:
//
//   - PostmarkClient sends through Postmark's transactional API.
//   - DevSender writes HTML and JSON files to a directory for local work.
//
// NewSender picks Postmark when both tokens are configured.
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//		return err
//	}
//	dispatcher := email.NewDispatcher(sender, cfg)
//	err = dispatcher.SendEmail(ctx, notify.Email{
//		To:      "user@example.com",
//		Subject: "New follower",
//		Body:    "alice started following you",
//		Type:    "follow",
//	})
//
// Validation failures wrap ErrInvalidParams; transport failures wrap
// ErrFailedToSendEmail.
package email
