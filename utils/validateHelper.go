package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateStruct runs the struct's `validate` tags and flattens failures into one error.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	msgs := make([]string, 0, len(ves))
	for field, tag := range ProcessValidationErrors(ves) {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, tag))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, ", "))
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return errorResponse
	}
	for _, ve := range ves {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
