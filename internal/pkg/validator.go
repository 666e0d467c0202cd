package pkg

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// DefaultValidator is the shared validator instance used by the services.
var DefaultValidator = NewValidator()

var colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("objectid", validateObjectID)
	v.RegisterValidation("color", validateColor)
	v.RegisterValidation("foldername", validateFolderName)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors, or nil.
func (v *Validator) Validate(s interface{}) ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var errs ValidationErrors
	for _, fieldErr := range err.(validator.ValidationErrors) {
		errs = append(errs, ValidationError{
			Field:   fieldErr.Field(),
			Message: errorMessage(fieldErr),
			Value:   fieldErr.Value(),
		})
	}

	return errs
}

// ValidateField validates a single value against a tag expression.
func (v *Validator) ValidateField(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Message)
}

func errorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
	case "objectid":
		return fmt.Sprintf("%s must be a valid id", err.Field())
	case "color":
		return fmt.Sprintf("%s must be a hex color like #3b82f6", err.Field())
	case "foldername":
		return fmt.Sprintf("%s contains invalid characters", err.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}

func validateObjectID(fl validator.FieldLevel) bool {
	_, err := primitive.ObjectIDFromHex(fl.Field().String())
	return err == nil
}

func validateColor(fl validator.FieldLevel) bool {
	return colorRegex.MatchString(fl.Field().String())
}

// Folder and file names may not contain path separators or NUL; the path
// column is derived from names, so a separator in a name would corrupt it.
func validateFolderName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
