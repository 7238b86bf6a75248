package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12 // fixed work factor, documented part of the hasher contract
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// PasswordPolicyError carries per-requirement reasons so callers can
// surface field-level validation feedback instead of a generic failure.
type PasswordPolicyError struct {
	Reasons []string
}

func (e *PasswordPolicyError) Error() string {
	if len(e.Reasons) == 0 {
		return "password does not meet policy"
	}
	return "password " + e.Reasons[0]
}

// HashPassword hashes a plaintext password with bcrypt. A hashing failure
// is an internal error, never a validation error; the plaintext is never
// logged or returned.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword verifies a plaintext password against a bcrypt hash
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the password policy: length bounds plus at
// least one upper-case letter, lower-case letter, digit, and symbol.
// Exactly MinPasswordLen characters meeting all four classes is accepted.
func ValidatePassword(password string) error {
	reasons := make([]string, 0)

	if len(password) < MinPasswordLen {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		reasons = append(reasons, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		reasons = append(reasons, "must contain at least one uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must contain at least one digit")
	}
	if !hasSpecial {
		reasons = append(reasons, "must contain at least one symbol")
	}

	if len(reasons) > 0 {
		return &PasswordPolicyError{Reasons: reasons}
	}

	return nil
}
