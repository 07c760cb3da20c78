package api

import (
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
)

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// detailedError carries extra response data (e.g. partial results) with an error.
type detailedError struct {
	err     error
	details interface{}
}

func (e *detailedError) Error() string { return e.err.Error() }
func (e *detailedError) Unwrap() error { return e.err }

func withDetails(err error, details interface{}) error {
	return &detailedError{err: err, details: details}
}

// ErrorHandler renders every error as {"error": {...}} with the status mapped
// from its type. Server-side failures are reported to Sentry.
func ErrorHandler(logger interfaces.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := statusOf(err)
		code := apperrors.Kind(err)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = "http-error"
		}
		body := ErrorBody{Code: code, Message: err.Error()}
		var de *detailedError
		if errors.As(err, &de) {
			body.Details = de.details
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error(fmt.Sprintf("%s %s: %v", c.Method(), c.Path(), err))
			hub := sentry.CurrentHub().Clone()
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("error_type", code)
				scope.SetTag("path", c.Path())
				hub.CaptureException(err)
			})
		} else {
			logger.Warn(fmt.Sprintf("%s %s: %v", c.Method(), c.Path(), err))
		}
		return c.Status(status).JSON(ErrorResponse{Error: body})
	}
}
