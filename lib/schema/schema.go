// Package schema holds the field rules for the registration form.
//
// Validation is an explicit function rather than a reflected schema: the
// form has two fields and two rules, so Validate returns a tagged Result
// that is either accepted or a map from field name to message.
package schema

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Field names as posted by the form and used as keys in Errors.
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// Minimum lengths, counted in Unicode code points.
const (
	MinUsernameLen = 5
	MinPasswordLen = 8
)

// Messages shown next to the offending field.
const (
	MsgUsernameTooShort = "Username must be at least 5 characters long"
	MsgPasswordTooShort = "Password must be at least 8 characters long"
)

// ErrUnknownField is returned for field names the form does not have.
var ErrUnknownField = errors.New("schema: unknown field")

// Fields lists the form fields in render order.
var Fields = []string{FieldUsername, FieldPassword}

// Errors maps a field name to its message. A nil or empty map means no
// field failed.
type Errors map[string]string

// Error implements error so a failed Result can travel as one.
func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "schema: no errors"
	case 1:
		for f, msg := range e {
			return fmt.Sprintf("schema: %s: %s", f, msg)
		}
	}
	return fmt.Sprintf("schema: %d fields invalid", len(e))
}

// Has reports whether field has a message.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Result is the outcome of validating a candidate input.
type Result struct {
	Errors Errors
}

// Accepted reports whether every rule passed.
func (r Result) Accepted() bool {
	return len(r.Errors) == 0
}

// Err returns the field errors as an error, or nil when accepted.
func (r Result) Err() error {
	if r.Accepted() {
		return nil
	}
	return r.Errors
}

// Validate runs every rule against username and password.
func Validate(username, password string) Result {
	errs := Errors{}
	if msg := check(FieldUsername, username); msg != "" {
		errs[FieldUsername] = msg
	}
	if msg := check(FieldPassword, password); msg != "" {
		errs[FieldPassword] = msg
	}
	if len(errs) == 0 {
		return Result{}
	}
	return Result{Errors: errs}
}

// ValidateField runs the rule for a single field. It returns the empty
// string when value passes.
func ValidateField(field, value string) (string, error) {
	switch field {
	case FieldUsername, FieldPassword:
		return check(field, value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func check(field, value string) string {
	n := utf8.RuneCountInString(value)
	switch field {
	case FieldUsername:
		if n < MinUsernameLen {
			return MsgUsernameTooShort
		}
	case FieldPassword:
		if n < MinPasswordLen {
			return MsgPasswordTooShort
		}
	}
	return ""
}
