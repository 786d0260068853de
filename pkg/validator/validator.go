package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterGinRules installs the custom tags on gin's binding engine. Safe to call more than once.
func RegisterGinRules() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin binding engine is not go-playground/validator")
			return
		}
		err = RegisterRules(v)
	})
	return err
}

// RegisterRules adds email_address, person_name, strong_password, address and rating tags to v.
func RegisterRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"email_address": func(fl validator.FieldLevel) bool {
			return ValidateEmail(fl.Field().String()) == nil
		},
		"person_name": func(fl validator.FieldLevel) bool {
			return ValidateName(fl.Field().String()) == nil
		},
		"strong_password": func(fl validator.FieldLevel) bool {
			return ValidatePassword(fl.Field().String()) == nil
		},
		"address": func(fl validator.FieldLevel) bool {
			return ValidateAddress(fl.Field().String()) == nil
		},
		"rating": func(fl validator.FieldLevel) bool {
			return ValidateRatingValue(int(fl.Field().Int())) == nil
		},
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email", "email_address":
		return "Please enter a valid email address"
	case "person_name":
		return fmt.Sprintf("Name must be between %d and %d characters", NameMinLength, NameMaxLength)
	case "strong_password":
		if err := ValidatePassword(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s is not valid", field)
	case "address":
		if err := ValidateAddress(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s is not valid", field)
	case "rating":
		return fmt.Sprintf("Rating must be between %d and %d", RatingMin, RatingMax)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is not valid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Name":            "Name",
		"Email":           "Email",
		"Password":        "Password",
		"CurrentPassword": "Current password",
		"NewPassword":     "New password",
		"Address":         "Address",
		"Role":            "Role",
		"OwnerID":         "Owner",
		"StoreID":         "Store",
		"Rating":          "Rating",
		"Comment":         "Comment",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
