package compress

import "errors"

var (
	ErrInvalidConfig  = errors.New("compress: invalid config")
	ErrEncode         = errors.New("compress: failed to encode payload")
	ErrDecode         = errors.New("compress: failed to decode payload")
	ErrUnknownEncoder = errors.New("compress: unknown content encoding")
)
