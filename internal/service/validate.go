package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"travel/internal/repository"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Decimals compare as numbers so gt/gte work on amounts and prices.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// nocontrol rejects line breaks and other control characters in values
	// that end up in tx_refs and email headers.
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
	})

	return v
}

// moneyPlaces is the scale of every DECIMAL money column.
const moneyPlaces = 2

// checkMoneyPlaces adds a field error to err when d has more decimal places
// than the column stores. err is the result of validateStruct.
func checkMoneyPlaces(err error, field string, d *decimal.Decimal) error {
	if d == nil || d.Equal(d.Truncate(moneyPlaces)) {
		return err
	}

	msg := fmt.Sprintf("Ensure that there are no more than %d decimal places.", moneyPlaces)
	if err == nil {
		return fieldError(field, msg)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	if _, seen := verr.Fields[field]; !seen {
		verr.Fields[field] = msg
	}
	return verr
}

// validateStruct runs the struct's validate tags and converts failures to a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "uuid", "uuid4":
		return "Must be a valid UUID."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "nocontrol":
		return "Control characters are not allowed."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}

// outOfRangeField turns a column overflow reported by the store into a field error.
func outOfRangeField(err error, field string) error {
	if errors.Is(err, repository.ErrOutOfRange) {
		return fieldError(field, "Ensure this value fits in the stored number of digits.")
	}
	return err
}
