// entry.go validates registry entries against their struct tags and reports every violated
// constraint as a {path, error, param} triple keyed by the JSON field name.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Violation describes one failed field constraint
type Violation struct {
	Path  string `json:"path"`
	Error string `json:"error"`
	Param string `json:"param"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Registration only fails for empty tags or nil functions.
		_ = v.RegisterValidation("constraint", func(fl validator.FieldLevel) bool {
			return ValidateConstraint(fl.Field().String()) == nil
		})
		validate = v
	})
	return validate
}

// Struct validates entry and returns the violated constraints, or nil when entry is valid.
// Any error other than field violations is returned as err.
func Struct(entry interface{}) ([]Violation, error) {
	err := instance().Struct(entry)
	if err == nil {
		return nil, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	violations := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, Violation{
			Path:  fe.Field(),
			Error: fe.Tag(),
			Param: fe.Param(),
		})
	}
	return violations, nil
}
