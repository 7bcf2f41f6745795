package compress

// Config holds the optimizer policy.
type Config struct {
	// MinSaving is the fraction of the encoded size compression must save
	// to be used.
	MinSaving float64 `env:"COMPRESS_MIN_SAVING" envDefault:"0.10"`
	// MinSize skips compression for payloads smaller than this many bytes.
	MinSize int `env:"COMPRESS_MIN_SIZE" envDefault:"128"`
	// Limits caps title plus body length in runes per channel.
	Limits map[string]int `env:"COMPRESS_CHANNEL_LIMITS" envDefault:"sms:160,push:1024"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		MinSaving: 0.10,
		MinSize:   128,
		Limits:    map[string]int{ChannelSMS: 160, ChannelPush: 1024},
	}
}

// Well known channel names.
const (
	ChannelSMS  = "sms"
	ChannelPush = "push"
)
