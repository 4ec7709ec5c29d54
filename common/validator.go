package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const (
	CodeInvalidBody = "INVALID_REQUEST_BODY"
	CodeValidation  = "VALIDATION_ERROR"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Decode reads a JSON body into payload. An empty body leaves payload
// untouched, like an empty object.
func Decode(r *http.Request, payload interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil && !errors.Is(err, io.EOF) {
		return WithStatus(CodeInvalidBody, "Invalid request body", http.StatusBadRequest)
	}
	return nil
}

// ValidateAndDecode reads a JSON body into payload and runs its validate tags.
func ValidateAndDecode(r *http.Request, payload interface{}) error {
	if err := Decode(r, payload); err != nil {
		return err
	}
	return Validate(payload)
}

// Validate runs the validate tags of payload.
func Validate(payload interface{}) error {
	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return Wrap(err)
		}
		fields := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
		}
		return WithStatus(CodeValidation, "Invalid fields: "+strings.Join(fields, ", "), http.StatusBadRequest)
	}
	return nil
}
