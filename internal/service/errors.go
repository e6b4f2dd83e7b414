package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
)

// InputError names every field that failed validation and why. It matches
// ErrInvalidInput under errors.Is.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}

	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func fieldError(field, msg string) *InputError {
	return &InputError{Fields: map[string]string{field: msg}}
}

// fromValidation converts ozzo validation errors. Anything that is not a
// per-field error is returned as is.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &InputError{Fields: make(map[string]string, len(verrs))}
	for field, ferr := range verrs {
		out.Fields[field] = ferr.Error()
	}

	return out
}
