package templating

import (
	"errors"

	"github.com/aymerick/raymond"
)

// Validation is the outcome of compiling a subject and body.
type Validation struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Validate compiles subject and body independently and collects per-field
// syntax errors. It never fails.
func Validate(subject, body string) Validation {
	v := Validation{Valid: true}
	for _, f := range []struct{ name, src string }{
		{FieldSubject, subject},
		{FieldBody, body},
	} {
		if _, err := raymond.Parse(f.src); err != nil {
			if v.Errors == nil {
				v.Errors = make(map[string]string)
			}
			v.Errors[f.name] = err.Error()
			v.Valid = false
		}
	}
	return v
}

// Err returns the first syntax error, body first, or nil when valid.
func (v Validation) Err() error {
	for _, field := range []string{FieldBody, FieldSubject} {
		if msg, ok := v.Errors[field]; ok {
			return &SyntaxError{Field: field, Err: errors.New(msg)}
		}
	}
	return nil
}
