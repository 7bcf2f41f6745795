package retry

// Kind is a delivery failure class.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetworkTimeout
	KindNetworkUnavailable
	KindServiceUnavailable
	KindRateLimited
	KindServerError
	KindInvalidToken
	KindPermissionDenied
	KindInvalidPayload
	KindQuotaExceeded
	KindClientError
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindNetworkTimeout:     "network_timeout",
	KindNetworkUnavailable: "network_unavailable",
	KindServiceUnavailable: "service_unavailable",
	KindRateLimited:        "rate_limited",
	KindServerError:        "server_error",
	KindInvalidToken:       "invalid_token",
	KindPermissionDenied:   "permission_denied",
	KindInvalidPayload:     "invalid_payload",
	KindQuotaExceeded:      "quota_exceeded",
	KindClientError:        "client_error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Retryable reports whether the kind is ever worth another attempt.
func (k Kind) Retryable() bool {
	return PolicyFor(k).Retryable
}

// FromHTTPStatus maps an HTTP response status to a kind.
// Success codes map to KindUnknown and must not be passed in.
func FromHTTPStatus(code int) Kind {
	switch {
	case code == 401:
		return KindInvalidToken
	case code == 403:
		return KindPermissionDenied
	case code == 400 || code == 413 || code == 422:
		return KindInvalidPayload
	case code == 408:
		return KindNetworkTimeout
	case code == 429:
		return KindRateLimited
	case code == 502 || code == 503 || code == 504:
		return KindServiceUnavailable
	case code >= 500:
		return KindServerError
	case code >= 400:
		return KindClientError
	default:
		return KindUnknown
	}
}
