// Package service implements the business operations behind the API surface.
package service

import (
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/shelfmark/shelfmark-server/internal/errors"
)

// validate is a shared validator instance for request validation.
var validate = func() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for field names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove any options (like omitempty, -)
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})
	return v
}()

// validateInput runs struct validation and converts failures into a
// validation domain error carrying the offending arguments.
func validateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return errors.ValidationWithDetails(err.Error(), input)
	}
	return nil
}
