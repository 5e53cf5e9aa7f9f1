// Package validation builds the shared request validator and formats its errors.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var hexRGB = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ClockLayout is the HH:MM layout used for send times.
const ClockLayout = "15:04"

// New returns a validator with the custom tags used by request models:
// clock (HH:MM), hexrgb (#RRGGBB) and notblank.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("hexrgb", func(fl validator.FieldLevel) bool {
		return hexRGB.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ParseClock parses HH:MM into an offset from midnight.
func ParseClock(raw string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Message converts the first validator failure into a readable sentence.
func Message(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}
	fe := validationErrs[0]
	field := toSnakeCase(fe.Field())

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "uuid4":
		return fmt.Sprintf("%s must be a valid uuid", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "clock":
		return fmt.Sprintf("%s must be a time in HH:MM format", field)
	case "hexrgb":
		return fmt.Sprintf("%s must be a color in #RRGGBB format", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func toSnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (runes[i-1] < 'A' || runes[i-1] > 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
