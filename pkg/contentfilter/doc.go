// Package contentfilter screens notification text before delivery.
//
// A Filter checks title and body for profanity, spam phrases, phishing
// language and malicious links, and always returns a sanitized copy with
// markup removed, whitespace collapsed and length capped. Matching runs on
// NFKC-normalized, case-folded text so full-width or stylized characters
// do not slip past the word lists.
//
// Rules come from YAML. DefaultRules returns the built-in set; LoadRules
// reads a custom file:
//
//	rules, err := contentfilter.LoadRulesFile("rules.yaml")
//	if err != nil {
//		return err
//	}
//	f, err := contentfilter.New(rules)
//	res := f.Check(title, body)
//	if !res.Safe {
//		// reject
//	}
//
// The filter fails closed: content it cannot evaluate is reported unsafe.
package contentfilter
