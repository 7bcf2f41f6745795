package email

// Config holds email delivery settings. When the Postmark tokens are empty
// the daemon falls back to DevSender writing into DevDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"EMAIL_SENDER" envDefault:"notifications@example.com"`
	SupportEmail         string `env:"EMAIL_SUPPORT" envDefault:"support@example.com"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
	ProductName          string `env:"EMAIL_PRODUCT_NAME" envDefault:"Notifications"`
	// SettingsURL is linked from every email footer.
	SettingsURL string `env:"EMAIL_SETTINGS_URL"`
}

// UsePostmark reports whether both Postmark tokens are set.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
