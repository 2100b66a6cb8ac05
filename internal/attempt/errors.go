package attempt

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound covers missing attempts, activities and questions, and
	// attempts owned by someone else.
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("attempt was modified concurrently")
	ErrUnauthenticated = errors.New("authentication required")
	ErrUnsupported     = errors.New("operation not supported for this activity kind")
)

// ValidationError is a rejected precondition or malformed input. Detail
// carries a field map or an {answered, total} pair.
type ValidationError struct {
	Msg    string
	Detail map[string]any
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string, detail map[string]any) error {
	return &ValidationError{Msg: msg, Detail: detail}
}

// fieldErrors builds a ValidationError for missing or malformed fields.
func fieldErrors(fields map[string]string) error {
	d := make(map[string]any, len(fields))
	for k, v := range fields {
		d[k] = v
	}
	return invalid("invalid request", d)
}

func errAlreadyCompleted() error {
	return invalid("attempt already completed", nil)
}

func errIncomplete(answered, total int) error {
	return invalid(
		fmt.Sprintf("answer all questions before completing (%d/%d answered)", answered, total),
		map[string]any{"answered": answered, "total": total},
	)
}

func notFound(what, id string) error {
	return errors.Wrapf(ErrNotFound, "%s %s", what, id)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
