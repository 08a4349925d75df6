package form

import (
	"errors"
	"sort"
	"strings"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// ValidationError carries the per-field messages of a failed form.
type ValidationError struct {
	Fields map[string]string
}

// Error lists the failing fields in a stable order.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// FieldErrors converts a *ValidationError into a 422 AppError with the
// field map attached. Other errors pass through unchanged.
func FieldErrors(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return apperror.NewFieldErrors(ve.Fields)
	}
	return err
}
