package upload

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory = errors.New("unknown category key")
	ErrIndexOutOfRange = errors.New("sub-module index out of range")
	ErrNoFiles         = errors.New("no files provided")
)

// FieldError names the constraint a single form field violated.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// ValidationErrors is the full list of constraint violations found by Build.
// A non-empty list means the package was not finalized.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func emptyTopModuleError() FieldError {
	return FieldError{Field: "top_module", Message: "top module name is empty"}
}

func emptySubModuleError(index int) FieldError {
	return FieldError{
		Field:   fmt.Sprintf("sub_modules[%d]", index),
		Message: fmt.Sprintf("sub-module %d name is empty", index+1),
	}
}

func duplicateSubModuleError(index int, name string) FieldError {
	return FieldError{
		Field:   fmt.Sprintf("sub_modules[%d]", index),
		Message: "duplicate sub-module name: " + name,
	}
}
