// Package validation checks request payloads at the HTTP boundary and turns
// rule violations into field-level messages.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// DateLayout is the calendar-date form accepted for due dates besides RFC 3339.
const DateLayout = "2006-01-02"

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
			}
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
		instance = v
	})
	return instance
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if t, err := time.Parse(DateLayout, val); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, val)
}

// Struct validates payload against its `validate` tags. Violations are
// reported with the field's `message` tag when present.
func Struct(payload any) error {
	err := get().Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("Validation failed", nil)
	}

	typ := reflect.TypeOf(payload)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Message: messageFor(typ, fe),
		})
	}
	return apperrors.NewValidationError("Validation failed", fields)
}

func messageFor(typ reflect.Type, fe validator.FieldError) string {
	if sf, ok := typ.FieldByName(fe.StructField()); ok {
		if msg := sf.Tag.Get("message"); msg != "" {
			return msg
		}
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return "Invalid " + fe.Field()
	}
	return fe.Field() + " is invalid"
}

// TrimPtr trims the pointed-to string in place.
func TrimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
