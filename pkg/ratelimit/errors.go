package ratelimit

import "errors"

var (
	ErrStoreRequired = errors.New("ratelimit: store is required")
	ErrKeyRequired   = errors.New("ratelimit: key is required")
	ErrUnexpectedRes = errors.New("ratelimit: unexpected store response")
)
