package opensearch

import "errors"

var (
	ErrConnectionFailed  = errors.New("opensearch connection failed")
	ErrHealthcheckFailed = errors.New("opensearch healthcheck failed")
	// ErrRequestFailed wraps any non-2xx response from the cluster.
	ErrRequestFailed = errors.New("opensearch request failed")
)
