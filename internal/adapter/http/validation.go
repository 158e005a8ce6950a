package http

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

var (
	rePhone10 = regexp.MustCompile(`^[0-9]{10}$`)
	// persona moral (12) or persona física (13)
	reRFC = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)
)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// ten-digit national phone number
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return rePhone10.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("rfc", func(fl validator.FieldLevel) bool {
		return reRFC.MatchString(strings.ToUpper(fl.Field().String()))
	})
	// money: max 2 decimal places
	_ = v.RegisterValidation("dec2", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return math.Abs(f-(math.Round(f*100)/100)) < 1e-9
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "es obligatorio"})
		case "email":
			out = append(out, FieldError{Field: field, Message: "debe ser un correo válido"})
		case "phone10":
			out = append(out, FieldError{Field: field, Message: "debe tener 10 dígitos"})
		case "rfc":
			out = append(out, FieldError{Field: field, Message: "debe ser un RFC válido"})
		case "dec2":
			out = append(out, FieldError{Field: field, Message: "admite como máximo 2 decimales"})
		case "oneof":
			out = append(out, FieldError{Field: field, Message: "debe ser uno de: " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "debe ser mayor o igual a " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "debe ser menor o igual a " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: "validación " + e.Tag() + " fallida"})
		}
	}
	return out
}
