// Package validate holds the client-side form checks performed before any
// network call. Errors are keyed per field so callers can surface them
// next to the offending input.
package validate

import (
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	digitPattern    = regexp.MustCompile(`\d`)
)

// FieldErrors maps field names to their validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// Username checks the registration username rules.
func Username(username string) string {
	switch {
	case username == "":
		return "Username is required"
	case len(username) < 3:
		return "Username must be at least 3 characters"
	case len(username) > 20:
		return "Username must be less than 20 characters"
	case !usernamePattern.MatchString(username):
		return "Username can only contain letters, numbers and underscores"
	}
	return ""
}

// Email checks the address shape.
func Email(email string) string {
	switch {
	case email == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	}
	return ""
}

// Password checks length and character-class rules.
func Password(password string) string {
	switch {
	case password == "":
		return "Password is required"
	case len(password) < 6:
		return "Password must be at least 6 characters"
	case len(password) > 20:
		return "Password must be less than 20 characters"
	case !lowerPattern.MatchString(password) ||
		!upperPattern.MatchString(password) ||
		!digitPattern.MatchString(password):
		return "Password must contain at least one uppercase letter, one lowercase letter and one number"
	}
	return ""
}

// Registration validates the full registration form. A nil return means
// the form is acceptable.
func Registration(username, email, password, confirmPassword string) FieldErrors {
	errs := FieldErrors{}
	if msg := Username(username); msg != "" {
		errs["username"] = msg
	}
	if msg := Email(email); msg != "" {
		errs["email"] = msg
	}
	if msg := Password(password); msg != "" {
		errs["password"] = msg
	}
	if confirmPassword == "" {
		errs["confirmPassword"] = "Please confirm your password"
	} else if confirmPassword != password {
		errs["confirmPassword"] = "Passwords do not match"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Login validates the login form.
func Login(username, password string) FieldErrors {
	errs := FieldErrors{}
	if username == "" {
		errs["username"] = "Username is required"
	}
	if password == "" {
		errs["password"] = "Password is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
