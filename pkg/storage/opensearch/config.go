package opensearch

// Config holds the OpenSearch connection and the audit index settings.
// An empty address list means the sink is disabled.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`

	Index string `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"notifycore-audit"`
	// Refresh makes writes visible to search immediately. Tests want it,
	// production usually does not.
	Refresh bool `env:"OPENSEARCH_REFRESH" envDefault:"false"`
}

// Enabled reports whether any address is configured.
func (c Config) Enabled() bool { return len(c.Addresses) > 0 }
