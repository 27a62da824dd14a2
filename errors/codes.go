package errors

// ErrorCategory classifies errors by their retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates quota or rate limit exhaustion.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates bugs or corrupted state.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies a specific failure.
type ErrorCode string

const (
	// Transient
	ErrCodeTimeout          ErrorCode = "TIMEOUT"           // deadline exceeded
	ErrCodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"  // embedding provider call failed
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE" // feature store unreachable

	// Permanent
	ErrCodeDocumentUnreadable ErrorCode = "DOCUMENT_UNREADABLE" // no extraction strategy produced text
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"       // malformed record or argument
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"           // record does not exist
	ErrCodeDimensionMismatch  ErrorCode = "DIMENSION_MISMATCH"  // vectors of different length
	ErrCodeConfigInvalid      ErrorCode = "CONFIG_INVALID"      // configuration rejected
	ErrCodeCanceled           ErrorCode = "CANCELED"            // caller canceled

	// Resource
	ErrCodeRateLimit ErrorCode = "RATE_LIMITED" // provider or local limiter refused

	// Internal
	ErrCodeStoreFailed ErrorCode = "STORE_FAILED" // query or transaction failed
	ErrCodeInternal    ErrorCode = "INTERNAL"     // unexpected failure
	ErrCodePanic       ErrorCode = "PANIC"        // recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeEmbeddingFailed, ErrCodeStoreUnavailable:
		return CategoryTransient
	case ErrCodeDocumentUnreadable, ErrCodeInvalidInput, ErrCodeNotFound,
		ErrCodeDimensionMismatch, ErrCodeConfigInvalid, ErrCodeCanceled:
		return CategoryPermanent
	case ErrCodeRateLimit:
		return CategoryResource
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:            "operation timed out",
	ErrCodeEmbeddingFailed:    "embedding request failed",
	ErrCodeStoreUnavailable:   "feature store unavailable",
	ErrCodeDocumentUnreadable: "document is unreadable",
	ErrCodeInvalidInput:       "invalid input provided",
	ErrCodeNotFound:           "record not found",
	ErrCodeDimensionMismatch:  "embedding dimension mismatch",
	ErrCodeConfigInvalid:      "invalid configuration",
	ErrCodeCanceled:           "operation canceled",
	ErrCodeRateLimit:          "rate limit exceeded",
	ErrCodeStoreFailed:        "feature store operation failed",
	ErrCodeInternal:           "internal error",
	ErrCodePanic:              "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
