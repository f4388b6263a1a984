// Package validation checks `validate` struct tags with go-playground's
// validator and reports failures as VALIDATION_ERROR errors.
//
// Services call Struct and Var on their inputs. Interceptors built with
// txproxy.WithValidator call Arguments on every method argument before a
// transaction is begun, so invalid input never reaches the data source.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/anvil/internal/errors"
)

// Validator wraps a configured *validator.Validate. It is safe for
// concurrent use; the underlying validator caches struct metadata.
type Validator struct {
	validate *validator.Validate
}

var (
	instance *Validator
	once     sync.Once
)

// Default returns the shared validator.
func Default() *Validator {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates a validator reporting fields by their JSON names and knowing
// the notblank rule.
func New() *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// notblank rejects strings made only of whitespace
	_ = v.validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() == reflect.String {
			return strings.TrimSpace(f.String()) != ""
		}
		return !f.IsZero()
	})

	return v
}

// Struct validates s, a struct or a pointer to one.
func (v *Validator) Struct(s any) error {
	if s == nil {
		return errors.ErrValidationError("value is required", nil, nil)
	}
	rv := reflect.ValueOf(s)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return errors.ErrValidationError("value is required", nil, nil)
	}
	return v.format(v.validate.Struct(s), "")
}

// Var validates a single value against tag, reporting it as name.
func (v *Validator) Var(name string, value any, tag string) error {
	return v.format(v.validate.Var(value, tag), name)
}

// Arguments validates every argument that is a struct or a non-nil pointer
// to one. Other values, including nil pointers, are skipped.
func (v *Validator) Arguments(args ...any) error {
	for _, arg := range args {
		if !isStruct(arg) {
			continue
		}
		if err := v.Struct(arg); err != nil {
			return err
		}
	}
	return nil
}

func isStruct(arg any) bool {
	if arg == nil {
		return false
	}
	t := reflect.TypeOf(arg)
	if t.Kind() == reflect.Pointer {
		if reflect.ValueOf(arg).IsNil() {
			return false
		}
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// format converts validator errors into a VALIDATION_ERROR carrying one
// entry per failing field. name replaces the empty field name Var reports.
func (v *Validator) format(err error, name string) error {
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return errors.ErrValidationError("value cannot be validated", nil, err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.ErrValidationError("validation failed", nil, err)
	}

	fields := make(map[string]string, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if field == "" {
			field = name
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[field] = rule
		messages = append(messages, describe(field, fe))
	}

	return errors.ErrValidationError(strings.Join(messages, "; "), fields, nil)
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
	}
}
