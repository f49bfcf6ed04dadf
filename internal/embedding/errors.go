package embedding

import "errors"

var (
	// ErrProviderAuth is returned when the provider rejects the credentials.
	ErrProviderAuth = errors.New("embedding provider authentication failed")

	// ErrRateLimited is returned when the provider throttles the request.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrUnsupportedModel is returned for a malformed or unknown model identifier.
	ErrUnsupportedModel = errors.New("unsupported embedding model")

	// ErrEmptyEmbedding is returned when the provider sends a vector with no values.
	ErrEmptyEmbedding = errors.New("empty embedding received")

	// ErrMalformedBatch is returned when response positions repeat or fall
	// outside the batch.
	ErrMalformedBatch = errors.New("malformed embedding batch")
)

// ClassifyStatus maps an HTTP status from a provider to one of the sentinels
// above. It returns nil when the status carries no specific meaning.
func ClassifyStatus(status int) error {
	switch status {
	case 401, 403:
		return ErrProviderAuth
	case 429:
		return ErrRateLimited
	case 400, 404:
		return ErrUnsupportedModel
	default:
		return nil
	}
}
