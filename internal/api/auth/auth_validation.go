package auth

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lmoreira/go-task-tracker/internal/types"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 8

	// Punctuation accepted by the password symbol rule.
	passwordSymbols = `!@#$%^&*(),.?":{}|<>`
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validateRegistration checks the registration input against the identity
// constraints. The server-side policy is authoritative; clients may duplicate
// it for UX but this is the check that counts.
func validateRegistration(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return &types.MissingFieldsError{Fields: map[string]bool{
			"username": username != "",
			"email":    email != "",
			"password": password != "",
		}}
	}

	fields := map[string]string{}
	if n := utf8.RuneCountInString(username); n < usernameMinLen || n > usernameMaxLen {
		fields["username"] = "username must be between 3 and 30 characters"
	}
	if !emailPattern.MatchString(email) {
		fields["email"] = "email must be a valid email address"
	}
	if len(fields) > 0 {
		return &types.ValidationError{Fields: fields}
	}

	return validatePassword(password)
}

// validatePassword evaluates every policy sub-rule so the caller can report
// exactly which ones failed rather than a single pass/fail.
func validatePassword(password string) error {
	check := types.PasswordPolicyError{
		Length: utf8.RuneCountInString(password) >= passwordMinLen,
	}
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			check.Uppercase = true
		case unicode.IsLower(r):
			check.Lowercase = true
		case unicode.IsDigit(r):
			check.Digit = true
		case strings.ContainsRune(passwordSymbols, r):
			check.Symbol = true
		}
	}

	if check.Length && check.Uppercase && check.Lowercase && check.Digit && check.Symbol {
		return nil
	}
	return &check
}
