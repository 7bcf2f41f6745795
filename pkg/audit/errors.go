package audit

import "errors"

var (
	ErrStorageNotAvailable = errors.New("audit: storage not available")
	ErrInvalidEvent        = errors.New("audit: invalid event")
	ErrWriterClosed        = errors.New("audit: writer closed")
)
