package provider

import "errors"

var (
	// ErrNoProviderAvailable is returned when no provider is eligible for a send.
	ErrNoProviderAvailable = errors.New("no delivery provider available")

	// ErrAllProvidersFailed is returned when every candidate rejected the message.
	ErrAllProvidersFailed = errors.New("all delivery providers failed")

	// ErrNoRecipients is returned by multicast with an empty recipient list.
	ErrNoRecipients = errors.New("multicast without recipients")

	// ErrRecipientUnreachable marks a failure caused by the recipient rather
	// than the transport, such as no open connection. It does not trip the
	// provider's circuit breaker.
	ErrRecipientUnreachable = errors.New("recipient is not reachable through this provider")

	// ErrSubscriberBacklog is returned when every subscriber buffer of a user is full.
	ErrSubscriberBacklog = errors.New("subscriber buffers are full")

	// ErrHubClosed is returned by a closed hub.
	ErrHubClosed = errors.New("hub is closed")

	// ErrGatewayRejected wraps non-2xx push gateway responses.
	ErrGatewayRejected = errors.New("push gateway rejected the request")

	// ErrMissingSecret is returned when signing without a secret.
	ErrMissingSecret = errors.New("signing secret is required")
)
