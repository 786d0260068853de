package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"anoa.com/storerating/pkg/apperror"
)

const (
	NameMinLength     = 20
	NameMaxLength     = 60
	PasswordMinLength = 8
	PasswordMaxLength = 16
	AddressMaxLength  = 400
	RatingMin         = 1
	RatingMax         = 5

	// SpecialChars is the set a password must draw at least one character from.
	SpecialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

// RuleKind identifies which shape rule a value broke.
type RuleKind string

const (
	InvalidLength      RuleKind = "InvalidLength"
	InvalidFormat      RuleKind = "InvalidFormat"
	MissingUppercase   RuleKind = "MissingUppercase"
	MissingSpecialChar RuleKind = "MissingSpecialChar"
	Required           RuleKind = "Required"
	TooLong            RuleKind = "TooLong"
	OutOfRange         RuleKind = "OutOfRange"
)

// RuleError is returned by the Validate* predicates. It wraps apperror.ErrInvalidInput.
type RuleError struct {
	Field   string
	Kind    RuleKind
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return apperror.ErrInvalidInput
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < NameMinLength || n > NameMaxLength {
		return &RuleError{
			Field:   "name",
			Kind:    InvalidLength,
			Message: fmt.Sprintf("Name must be between %d and %d characters", NameMinLength, NameMaxLength),
		}
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &RuleError{Field: "email", Kind: InvalidFormat, Message: "Please enter a valid email address"}
	}
	return nil
}

// ValidatePassword stops at the first failing rule: length, then uppercase, then special character.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength || n > PasswordMaxLength {
		return &RuleError{
			Field:   "password",
			Kind:    InvalidLength,
			Message: fmt.Sprintf("Password must be between %d and %d characters", PasswordMinLength, PasswordMaxLength),
		}
	}

	hasUpper := false
	for _, r := range password {
		if r >= 'A' && r <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return &RuleError{Field: "password", Kind: MissingUppercase, Message: "Password must contain at least one uppercase letter"}
	}

	if !strings.ContainsAny(password, SpecialChars) {
		return &RuleError{Field: "password", Kind: MissingSpecialChar, Message: "Password must contain at least one special character"}
	}
	return nil
}

func ValidateAddress(address string) error {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return &RuleError{Field: "address", Kind: Required, Message: "Address is required"}
	}
	if utf8.RuneCountInString(trimmed) > AddressMaxLength {
		return &RuleError{
			Field:   "address",
			Kind:    TooLong,
			Message: fmt.Sprintf("Address must not exceed %d characters", AddressMaxLength),
		}
	}
	return nil
}

// ValidateRating accepts only a base-10 integer in [1,5]; "3.5" and "" are rejected.
func ValidateRating(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ratingOutOfRange()
	}
	if err := ValidateRatingValue(v); err != nil {
		return 0, err
	}
	return v, nil
}

func ValidateRatingValue(v int) error {
	if v < RatingMin || v > RatingMax {
		return ratingOutOfRange()
	}
	return nil
}

func ratingOutOfRange() error {
	return &RuleError{
		Field:   "rating",
		Kind:    OutOfRange,
		Message: fmt.Sprintf("Rating must be between %d and %d", RatingMin, RatingMax),
	}
}
