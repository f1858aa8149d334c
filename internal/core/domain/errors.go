package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Adapters translate them into transport status codes; a
// wrapped error may carry more than one.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrIngestion        = errors.New("ingestion failed")
	ErrQuery            = errors.New("query failed")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError prefixes err with the operation and tags it with kind.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf names the most specific kind err carries, for logs and metric
// labels. Errors without a kind report "internal".
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrTemporary):
		return "temporary"
	case errors.Is(err, ErrIngestion):
		return "ingestion"
	case errors.Is(err, ErrQuery):
		return "query"
	default:
		return "internal"
	}
}
