package httpapi

import "errors"

var (
	ErrStart    = errors.New("httpapi: failed to start server")
	ErrShutdown = errors.New("httpapi: graceful shutdown failed")

	ErrInvalidUserID = errors.New("invalid user id")
	ErrInvalidBody   = errors.New("invalid request body")
	ErrStreaming     = errors.New("streaming is not supported by the connection")
)
