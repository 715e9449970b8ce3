// Package validator checks request DTOs against their `validate` tags.
package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// transitionModes are the values accepted by the transition_mode tag.
var transitionModes = map[string]bool{"manual": true, "auto": true, "system": true}

type Validator struct {
	v *validator.Validate
}

// New returns a validator that reports fields by their JSON name and knows
// the transition_mode tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("transition_mode", func(fl validator.FieldLevel) bool {
		return transitionModes[fl.Field().String()]
	})
	return &Validator{v: v}
}

func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}
