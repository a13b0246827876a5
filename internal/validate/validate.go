// Package validate checks request payloads and turns failures into
// InvalidArgument errors.
package validate

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/victornm/orgquiz/internal/errors"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Internal(fmt.Errorf("validate: %w", err))
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Field() + " failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("Invalid input: %s.", strings.Join(msgs, "; ")),
		errors.WithCause(err),
	)
}

// Page normalizes a listing window. A zero limit means DefaultPageLimit.
func Page(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return 0, 0, errors.InvalidArgument("Limit must be between 1 and %d.", MaxPageLimit)
	}
	if offset < 0 {
		return 0, 0, errors.InvalidArgument("Offset must not be negative.")
	}
	return limit, offset, nil
}
