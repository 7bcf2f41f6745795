package contentfilter

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules configures a Filter.
type Rules struct {
	MaxTitleLength int      `yaml:"max_title_length"`
	MaxBodyLength  int      `yaml:"max_body_length"`
	SpamThreshold  int      `yaml:"spam_threshold"`
	Profanity      []string `yaml:"profanity"`
	Spam           []string `yaml:"spam"`
	Phishing       []string `yaml:"phishing"`
	// Links are regular expressions matched against the raw text.
	Links []string `yaml:"links"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	r, err := parseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRules parses YAML rules. Missing limits fall back to the defaults.
func LoadRules(r io.Reader) (Rules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Rules{}, errors.Join(ErrFailedToLoad, err)
	}
	return parseRules(data)
}

// LoadRulesFile reads rules from path.
func LoadRulesFile(path string) (Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return Rules{}, errors.Join(ErrFailedToLoad, err)
	}
	defer f.Close()
	return LoadRules(f)
}

func parseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, errors.Join(ErrInvalidRules, err)
	}
	if r.MaxTitleLength < 0 || r.MaxBodyLength < 0 || r.SpamThreshold < 0 {
		return Rules{}, fmt.Errorf("%w: negative limit", ErrInvalidRules)
	}
	if r.MaxTitleLength == 0 {
		r.MaxTitleLength = 120
	}
	if r.MaxBodyLength == 0 {
		r.MaxBodyLength = 1000
	}
	if r.SpamThreshold == 0 {
		r.SpamThreshold = 2
	}
	return r, nil
}
