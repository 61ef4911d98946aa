package auth

import (
	"net/mail"
	"strings"

	"github.com/jrsteele09/go-session-client/users"
)

// ValidationError is returned for credentials rejected before any network call.
// Its message is meant to be shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches ErrInvalidCredentials
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validator checks credential payloads on the client side.
type Validator struct {
	// StrictPasswords applies users.ValidatePasswordStrength to new passwords
	// (registration and reset). Login passwords are never checked for strength.
	StrictPasswords bool
}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogin validates login credentials
func (v *Validator) ValidateLogin(c users.LoginCredentials) error {
	if err := v.ValidateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return invalid("password", "password is required")
	}
	return nil
}

// ValidateRegister validates a registration request
func (v *Validator) ValidateRegister(c users.RegisterCredentials) error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "name is required")
	}
	if err := v.ValidateEmail(c.Email); err != nil {
		return err
	}
	if err := v.validateNewPassword(c.Password); err != nil {
		return err
	}
	if strings.TrimSpace(c.Country) == "" {
		return invalid("country", "country is required")
	}
	switch c.Role {
	case "", users.RoleUser, users.RoleBusiness:
	default:
		return invalid("role", "role must be 'user' or 'business'")
	}
	return nil
}

// ValidateForgotPassword validates a reset email request
func (v *Validator) ValidateForgotPassword(c users.ForgotPasswordCredentials) error {
	return v.ValidateEmail(c.Email)
}

// ValidateResetPassword validates a password reset submission
func (v *Validator) ValidateResetPassword(c users.ResetPasswordCredentials) error {
	if strings.TrimSpace(c.Token) == "" {
		return invalid("token", "reset token is required")
	}
	return v.validateNewPassword(c.Password)
}

// ValidateEmail checks presence and basic format
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return invalid("email", "invalid email format")
	}
	return nil
}

func (v *Validator) validateNewPassword(password string) error {
	if password == "" {
		return invalid("password", "password is required")
	}
	if v.StrictPasswords {
		if err := users.ValidatePasswordStrength(password); err != nil {
			return invalid("password", err.Error())
		}
	}
	return nil
}
