// Package request binds and validates HTTP input into application errors.
package request

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Bind decodes the request into dst and runs the registered validator.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if err := c.Validate(dst); err != nil {
		return Validation(err)
	}
	return nil
}

// Validation converts validator errors into a validation AppError naming the offending fields.
// Other errors are returned unchanged.
func Validation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return errorbank.Validation("request validation failed",
		errorbank.WithField(verrs[0].Field()), errorbank.WithDetail("fields", fields))
}

// ID parses a positive int64 path parameter.
func ID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithField(name))
	}
	return id, nil
}

// Int reads an optional integer query parameter. Missing values yield zero.
func Int(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorbank.Validation("invalid "+name, errorbank.WithField(name))
	}
	return v, nil
}

// OptionalID reads an optional positive id query parameter.
func OptionalID(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, errorbank.Validation("invalid "+name, errorbank.WithField(name))
	}
	return &v, nil
}

// ParseDate reads a calendar date or an RFC 3339 timestamp in UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Date reads an optional date query parameter.
func Date(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return nil, errorbank.Validation("invalid "+name, errorbank.WithField(name), errorbank.WithCause(err))
	}
	return &t, nil
}
