package worker

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMissingField is returned when a job payload lacks a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrBatchSizeMismatch is returned when the provider returns a different
	// number of vectors than chunks were sent.
	ErrBatchSizeMismatch = errors.New("embedding batch size mismatch")

	// ErrDimensionMismatch is returned when a vector's width differs from the
	// configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DecodeError means the payload is not a job. The job is dropped.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode job: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProviderError means the embedding call failed or returned an unusable
// batch. Nothing was written.
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embed with model %q: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StorageError means the index transaction failed and was rolled back.
type StorageError struct {
	DocumentID uuid.UUID
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store chunks for document %s: %v", e.DocumentID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind names the error class for logs and the outcome log.
func ErrorKind(err error) string {
	var decodeErr *DecodeError
	var providerErr *ProviderError
	var storageErr *StorageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &providerErr):
		return "provider"
	case errors.As(err, &storageErr):
		return "storage"
	default:
		return "internal"
	}
}
