package api

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"vidpipe/internal/queue"
)

// RegisterValidators installs the position, quality and overlay_type tags.
// Pass gin's binding engine so request structs validate on bind.
func RegisterValidators(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"position": func(fl validator.FieldLevel) bool {
			_, ok := queue.ParsePosition(fl.Field().String())
			return ok
		},
		"quality": func(fl validator.FieldLevel) bool {
			_, ok := queue.ParseQuality(fl.Field().String())
			return ok
		},
		"overlay_type": func(fl validator.FieldLevel) bool {
			_, ok := queue.ParseOverlayType(fl.Field().String())
			return ok
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s validator: %w", tag, err)
		}
	}
	return nil
}

// ValidationMessages renders validator errors as one line per field.
func ValidationMessages(err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (param: %s)", msg, fe.Param())
		}
		out = append(out, msg)
	}
	return out
}
