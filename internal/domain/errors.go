package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes. Configuration errors are the only kind that surface as hard
// failures to an operator; embedding, retrieval and model errors are
// absorbed with degraded-but-available results.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeRetrieval     = "RETRIEVAL_ERROR"
	ErrCodeModel         = "MODEL_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

var (
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "knowledge document not found")
	ErrDocumentAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge document already exists")
	ErrInvalidAPIKey         = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// NewConfigurationError wraps a fatal initialization failure such as missing
// credentials or an unreachable vector index.
func NewConfigurationError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeConfiguration, message, err)
}

// NewEmbeddingError records a failed embedding pass for a single document.
func NewEmbeddingError(documentID string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, fmt.Sprintf("embedding failed for document %s", documentID), err)
}

// NewRetrievalError records a failed vector query. Callers absorb it and
// degrade to the static corpus.
func NewRetrievalError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeRetrieval, "vector query failed", err)
}

// NewModelError records a failed or unparsable generative-model response.
// Callers absorb it and return the deterministic fallback verdict.
func NewModelError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeModel, message, err)
}
