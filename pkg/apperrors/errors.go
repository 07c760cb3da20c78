// Package apperrors holds the error types surfaced by the sync pipeline.
// Each type maps to an HTTP status so the API layer can render it directly.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusCoder is implemented by every error in this package.
type StatusCoder interface {
	StatusCode() int
}

// AuthError means Gmail credentials are missing, expired or rejected.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gmail auth: %s: %v", e.Reason, e.Err)
	}
	return "gmail auth: " + e.Reason
}

func (e *AuthError) Unwrap() error   { return e.Err }
func (e *AuthError) StatusCode() int { return http.StatusUnauthorized }

// ProviderError wraps a failed Gmail API call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("gmail %s: %v", e.Op, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }
func (e *ProviderError) StatusCode() int {
	return http.StatusBadGateway
}

// StorageError wraps a failed object-store call.
type StorageError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("s3 %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}
func (e *StorageError) Unwrap() error   { return e.Err }
func (e *StorageError) StatusCode() int { return http.StatusBadGateway }

// WebHookError is returned when a subscriber answers with a non-2xx status
// or cannot be reached at all (Status is 0 in that case).
type WebHookError struct {
	Endpoint string
	Event    string
	Status   int
	Body     string
	Err      error
}

func (e *WebHookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook %s -> %s: %v", e.Event, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("webhook %s -> %s: status %d: %s", e.Event, e.Endpoint, e.Status, e.Body)
}
func (e *WebHookError) Unwrap() error   { return e.Err }
func (e *WebHookError) StatusCode() int { return http.StatusBadGateway }

// NotFoundError means a message reference no longer resolves.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// ValidationError reports bad caller input (request bodies, subscriptions, flags).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
func (e *ValidationError) StatusCode() int { return http.StatusUnprocessableEntity }

// StatusCode returns the HTTP status for err, walking joined and wrapped errors.
// The first typed error found wins; anything else is a 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// Kind names the error type for JSON responses.
func Kind(err error) string {
	var (
		authErr     *AuthError
		providerErr *ProviderError
		storageErr  *StorageError
		hookErr     *WebHookError
		notFound    *NotFoundError
		validation  *ValidationError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth-error"
	case errors.As(err, &notFound):
		return "not-found"
	case errors.As(err, &validation):
		return "validation-error"
	case errors.As(err, &storageErr):
		return "storage-error"
	case errors.As(err, &hookErr):
		return "webhook-error"
	case errors.As(err, &providerErr):
		return "provider-error"
	default:
		return "internal-error"
	}
}
