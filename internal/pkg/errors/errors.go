package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrIndexNotFound     = errors.New("index not found")
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrGenerationFailure = errors.New("generation failure")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrInvalid           = errors.New("invalid")
	ErrTooMany           = errors.New("too many requests")
	ErrInternal          = errors.New("internal")
)

// Wrap tags cause with kind. Both stay reachable through errors.Is, so a
// timeout wrapped as ErrGenerationFailure still matches
// context.DeadlineExceeded.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsIndexNotFound(err error) bool {
	return errors.Is(err, ErrIndexNotFound)
}

func IsEmbeddingFailure(err error) bool {
	return errors.Is(err, ErrEmbeddingFailure)
}

func IsGenerationFailure(err error) bool {
	return errors.Is(err, ErrGenerationFailure)
}

func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
