package workspace

import (
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoginForm is the input of Login.
type LoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// RegisterForm is the input of Register.
type RegisterForm struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// UploadForm is the input of Upload. Content must be non-nil.
type UploadForm struct {
	Filename    string    `validate:"required"`
	ContentType string    `validate:"required,oneof=image/jpeg image/jpg image/png application/pdf"`
	Content     io.Reader `validate:"-"`
}

// FieldProblem is one rejected form field.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError is returned, before any state changes, when a form is
// rejected client-side.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return strings.Join(msgs, "; ")
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Problems = append(ve.Problems, FieldProblem{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "ConfirmPassword":
		return "Passwords do not match"
	case fe.Field() == "ContentType":
		return "Please select a valid image (JPEG, PNG) or PDF file"
	case fe.Tag() == "min" && fe.Field() == "Password":
		return "Password must be at least " + fe.Param() + " characters long"
	case fe.Tag() == "email":
		return "Please enter a valid email address"
	case fe.Tag() == "required":
		return fieldLabel(fe.Field()) + " is required"
	default:
		return fieldLabel(fe.Field()) + " is invalid"
	}
}

func fieldLabel(field string) string {
	if field == "Filename" {
		return "File name"
	}
	return field
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Problems: []FieldProblem{{Field: field, Message: msg}}}
}
