// Package errors provides the structured error taxonomy used across matchkit.
//
// Every error that leaves a public entry point (feature building, ranking,
// storage) is an *Error carrying a code and a category. Callers decide how to
// react by category rather than by message:
//
//   - Transient: retry may succeed (embedding endpoint down, store unreachable)
//   - Permanent: retry will not help (unreadable document, invalid record)
//   - Resource: quota or rate limit exhaustion
//   - Internal: bugs and broken invariants
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDocumentUnreadable, "no text in document")
//
//	if errors.Is(err, errors.ErrCodeDocumentUnreadable) {
//	    // reject the upload
//	}
//
// Wrap keeps the code of an *Error already in the chain and maps context
// cancellation to TIMEOUT or CANCELED:
//
//	return errors.Wrap(err, "embedding posting text")
package errors
