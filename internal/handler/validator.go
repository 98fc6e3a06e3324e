package handler

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo.Context.Validate.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator ready to be set on echo.Echo.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (r *RequestValidator) Validate(i interface{}) error {
	if err := r.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gt", "min":
		return fe.Field() + " must be greater than " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

// bindAndValidate binds the request body into dst and validates it. The
// error response has already been written when it returns false.
func bindAndValidate(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, badRequest(c, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		msg := "invalid request body"
		if he, ok := err.(*echo.HTTPError); ok {
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		}
		return false, badRequest(c, msg)
	}
	return true, nil
}
