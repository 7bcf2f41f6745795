package contentfilter

import "errors"

var (
	ErrInvalidRules   = errors.New("contentfilter: invalid rules")
	ErrFailedToLoad   = errors.New("contentfilter: failed to load rules")
	ErrInvalidPattern = errors.New("contentfilter: invalid link pattern")
)
