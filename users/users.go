package users

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the account role reported by the backend
type RoleType string

const (
	RoleUser     RoleType = "user"
	RoleBusiness RoleType = "business"
	RoleAdmin    RoleType = "admin"
)

// User is the client-side snapshot of the server's user record. It is replaced
// wholesale on every successful fetch and never patched field by field.
type User struct {
	ID                string            `json:"_id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Role              RoleType          `json:"role,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	PhoneVerified     bool              `json:"phoneVerified,omitempty"`
	Image             string            `json:"image,omitempty"`
	Country           string            `json:"country,omitempty"`
	EmailVerified     bool              `json:"emailVerified"`
	IsBanned          bool              `json:"isBanned"`
	Business          []string          `json:"business,omitempty"`
	MemberType        string            `json:"memberType,omitempty"`
	MySavedBusinesses []json.RawMessage `json:"mySavedBusinesses,omitempty"` // opaque business documents
	CreatedAt         *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time        `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate a snapshot held by the session.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Business != nil {
		c.Business = append([]string(nil), u.Business...)
	}
	if u.MySavedBusinesses != nil {
		c.MySavedBusinesses = make([]json.RawMessage, len(u.MySavedBusinesses))
		for i, b := range u.MySavedBusinesses {
			c.MySavedBusinesses[i] = append(json.RawMessage(nil), b...)
		}
	}
	return &c
}

// LoginCredentials are posted to /user/login
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterCredentials are posted to /user/register
type RegisterCredentials struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Country  string   `json:"country"`
	Role     RoleType `json:"role,omitempty"`
}

// ForgotPasswordCredentials are posted to /user/forgot-password
type ForgotPasswordCredentials struct {
	Email string `json:"email"`
}

// ResetPasswordCredentials are posted to /user/reset-password
type ResetPasswordCredentials struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Account is the server-side view of a user, used by the fake backend.
type Account struct {
	User
	PasswordHash string   `json:"-"` // never serialize
	SavedIDs     []string `json:"-"` // business IDs behind MySavedBusinesses
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HasSavedBusiness reports whether businessID is in the account's saved list
func (a *Account) HasSavedBusiness(businessID string) bool {
	for _, b := range a.SavedIDs {
		if b == businessID {
			return true
		}
	}
	return false
}
