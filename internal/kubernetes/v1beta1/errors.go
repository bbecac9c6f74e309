package v1beta1

import "fmt"

// MissingFieldError indicates a required field was absent from the document.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// UnknownFieldError indicates the document carried a field outside the
// closed TokenReview schema.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// InvalidAPIVersionError indicates the apiVersion field did not match the
// version this authenticator serves.
type InvalidAPIVersionError struct {
	Expected string
	Got      string
}

func (e *InvalidAPIVersionError) Error() string {
	return fmt.Sprintf("invalid apiVersion %q, expected %q", e.Got, e.Expected)
}

// InvalidKindError indicates the kind field did not name a TokenReview.
type InvalidKindError struct {
	Expected string
	Got      string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid kind %q, expected %q", e.Got, e.Expected)
}
