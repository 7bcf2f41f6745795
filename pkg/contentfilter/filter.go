package contentfilter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Category groups findings.
type Category string

const (
	CategoryProfanity     Category = "profanity"
	CategorySpam          Category = "spam"
	CategoryPhishing      Category = "phishing"
	CategoryMaliciousLink Category = "malicious_link"
	CategoryMarkup        Category = "markup"
)

// Finding is one matched rule.
type Finding struct {
	Category Category `json:"category"`
	Match    string   `json:"match"`
}

// Result is the verdict of a check. Title and Body are always sanitized.
type Result struct {
	Safe     bool      `json:"safe"`
	Findings []Finding `json:"findings,omitempty"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
}

// Categories returns the distinct categories of the findings.
func (r Result) Categories() []string {
	var out []string
	for _, f := range r.Findings {
		if !slices.Contains(out, string(f.Category)) {
			out = append(out, string(f.Category))
		}
	}
	return out
}

// Filter applies compiled Rules. Safe for concurrent use.
type Filter struct {
	rules     Rules
	profanity []phrase
	spam      []phrase
	phishing  []phrase
	links     []*regexp.Regexp
}

type phrase struct {
	text string
	re   *regexp.Regexp
}

// New compiles rules.
func New(rules Rules) (*Filter, error) {
	f := &Filter{
		rules:     rules,
		profanity: compilePhrases(rules.Profanity),
		spam:      compilePhrases(rules.Spam),
		phishing:  compilePhrases(rules.Phishing),
	}
	for _, p := range rules.Links {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, p, err)
		}
		f.links = append(f.links, re)
	}
	return f, nil
}

// MustNew is New that panics on invalid rules.
func MustNew(rules Rules) *Filter {
	f, err := New(rules)
	if err != nil {
		panic(err)
	}
	return f
}

func compilePhrases(list []string) []phrase {
	out := make([]phrase, 0, len(list))
	for _, p := range list {
		n := Normalize(p)
		if n == "" {
			continue
		}
		out = append(out, phrase{
			text: n,
			re:   regexp.MustCompile(`(?:^|\W)` + regexp.QuoteMeta(n) + `(?:$|\W)`),
		})
	}
	return out
}

// Check evaluates title and body.
func (f *Filter) Check(title, body string) (res Result) {
	res.Title = Sanitize(title, f.rules.MaxTitleLength)
	res.Body = Sanitize(body, f.rules.MaxBodyLength)

	defer func() {
		if r := recover(); r != nil {
			res.Safe = false
			res.Findings = append(res.Findings, Finding{Category: CategoryMarkup, Match: fmt.Sprint(r)})
		}
	}()

	raw := title + "\n" + body
	if hasActiveMarkup(raw) {
		res.Findings = append(res.Findings, Finding{Category: CategoryMarkup, Match: "active content"})
	}

	text := Normalize(Sanitize(title, 0) + " " + Sanitize(body, 0))
	for _, p := range f.profanity {
		if p.re.MatchString(text) {
			res.Findings = append(res.Findings, Finding{Category: CategoryProfanity, Match: p.text})
		}
	}

	var spam []Finding
	for _, p := range f.spam {
		if p.re.MatchString(text) {
			spam = append(spam, Finding{Category: CategorySpam, Match: p.text})
		}
	}
	if len(spam) >= f.rules.SpamThreshold {
		res.Findings = append(res.Findings, spam...)
	}

	for _, p := range f.phishing {
		if p.re.MatchString(text) {
			res.Findings = append(res.Findings, Finding{Category: CategoryPhishing, Match: p.text})
		}
	}

	for _, re := range f.links {
		if m := re.FindString(raw); m != "" {
			res.Findings = append(res.Findings, Finding{Category: CategoryMaliciousLink, Match: strings.TrimSpace(m)})
		}
	}

	res.Safe = len(res.Findings) == 0
	return res
}
