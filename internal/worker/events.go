package worker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Job asks for one document to be re-indexed. It is the wire shape the
// producer pushes onto the queue.
type Job struct {
	DocumentID    uuid.UUID `json:"document_id"`
	Content       string    `json:"content"`
	Model         string    `json:"model"`
	ChunkStrategy string    `json:"chunk_strategy,omitempty"`
}

// DecodeJob parses a queue payload. Unknown fields are ignored; a missing
// document_id, content or model is a DecodeError. Empty content is valid.
func DecodeJob(body []byte) (*Job, error) {
	var raw struct {
		DocumentID    *uuid.UUID `json:"document_id"`
		Content       *string    `json:"content"`
		Model         *string    `json:"model"`
		ChunkStrategy string     `json:"chunk_strategy"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}

	switch {
	case raw.DocumentID == nil || *raw.DocumentID == uuid.Nil:
		return nil, &DecodeError{Err: fmt.Errorf("%w: document_id", ErrMissingField)}
	case raw.Content == nil:
		return nil, &DecodeError{Err: fmt.Errorf("%w: content", ErrMissingField)}
	case raw.Model == nil || *raw.Model == "":
		return nil, &DecodeError{Err: fmt.Errorf("%w: model", ErrMissingField)}
	}

	return &Job{
		DocumentID:    *raw.DocumentID,
		Content:       *raw.Content,
		Model:         *raw.Model,
		ChunkStrategy: raw.ChunkStrategy,
	}, nil
}
