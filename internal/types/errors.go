package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the cases callers match with errors.Is.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("authentication required or invalid token")
)

// MissingFieldsError reports which required request fields were absent.
type MissingFieldsError struct {
	Fields map[string]bool // field name -> present
}

func (e *MissingFieldsError) Error() string {
	missing := make([]string, 0, len(e.Fields))
	for f, present := range e.Fields {
		if !present {
			missing = append(missing, f)
		}
	}
	return fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
}

// PasswordPolicyError carries the result of each policy sub-rule.
// A field is true when the rule passed.
type PasswordPolicyError struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"hasUppercase"`
	Lowercase bool `json:"hasLowercase"`
	Digit     bool `json:"hasNumber"`
	Symbol    bool `json:"hasSpecial"`
}

func (e *PasswordPolicyError) Error() string {
	return "password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, one number, and one special character"
}

// DuplicateIdentityError identifies which unique identity field collided.
type DuplicateIdentityError struct {
	Field string // "email" or "username"
}

func (e *DuplicateIdentityError) Error() string {
	if e.Field == "email" {
		return "email already registered"
	}
	return "username already taken"
}

// ValidationError reports task field constraint violations.
type ValidationError struct {
	Fields map[string]string // field name -> violation message
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, m := range e.Fields {
		msgs = append(msgs, m)
	}
	return strings.Join(msgs, "; ")
}
