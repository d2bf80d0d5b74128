package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals an empty or unusable query text.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidAnalysis signals a query analysis with values outside the fixed enumerations.
	ErrInvalidAnalysis = errors.New("invalid query analysis")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a chat completion provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrMalformedLLMResponse signals an LLM answer without a usable JSON object.
	ErrMalformedLLMResponse = errors.New("malformed llm response")
	// ErrRateLimited signals a local rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidRecord signals a knowledge entry or template that cannot be stored.
	ErrInvalidRecord = errors.New("invalid record")
)

// FieldError wraps a validation sentinel with the offending field and value.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s=%q", e.Err.Error(), e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NewFieldError creates an invalid analysis error for a single field.
func NewFieldError(field, value string) error {
	return &FieldError{Field: field, Value: value, Err: ErrInvalidAnalysis}
}

// NewRecordError creates an invalid record error for a single field.
func NewRecordError(field, value string) error {
	return &FieldError{Field: field, Value: value, Err: ErrInvalidRecord}
}
