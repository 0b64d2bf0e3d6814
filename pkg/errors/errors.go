package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors. Every AppError wraps exactly one of these so callers
// can branch with errors.Is without caring about the message.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInternal          = errors.New("internal error")
	ErrServiceUnavail    = errors.New("service unavailable")
	ErrIdentityMissing   = errors.New("customer identity missing")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUpstream          = errors.New("upstream service error")
	ErrAmbiguousEligible = errors.New("eligibility cannot be verified")
	ErrCheckoutInFlight  = errors.New("checkout already in progress")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	// Retryable tells the storefront whether to re-enable the checkout control.
	Retryable bool `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// UpstreamError carries the status and body returned by a failing downstream call.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrUpstream) match.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error, used when a circuit breaker is open.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:      "SERVICE_UNAVAILABLE",
		Message:   message,
		Status:    http.StatusServiceUnavailable,
		Err:       ErrServiceUnavail,
		Retryable: true,
	}
}

// IdentityMissing is returned when neither a customer id nor an email is known.
// The customer has to sign in again; retrying is pointless.
func IdentityMissing() *AppError {
	return &AppError{
		Code:    "IDENTITY_MISSING",
		Message: "customer information not found, please sign in again",
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrIdentityMissing,
	}
}

// EmptyCart is returned when there is nothing to check out.
func EmptyCart() *AppError {
	return &AppError{
		Code:    "EMPTY_CART",
		Message: "cart is empty",
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrEmptyCart,
	}
}

// Upstream wraps a failed downstream call into a retryable 502.
func Upstream(service string, status int, body string) *AppError {
	return &AppError{
		Code:      "UPSTREAM_ERROR",
		Message:   fmt.Sprintf("%s request failed, please retry", service),
		Status:    http.StatusBadGateway,
		Err:       &UpstreamError{Service: service, StatusCode: status, Body: body},
		Retryable: true,
	}
}

// CheckoutInFlight is returned to a re-entrant checkout trigger.
func CheckoutInFlight() *AppError {
	return &AppError{
		Code:    "CHECKOUT_IN_FLIGHT",
		Message: "a checkout for this cart is already in progress",
		Status:  http.StatusConflict,
		Err:     ErrCheckoutInFlight,
	}
}

// RateLimited is returned when a client exceeds its request budget.
func RateLimited() *AppError {
	return &AppError{
		Code:      "RATE_LIMITED",
		Message:   "too many requests",
		Status:    http.StatusTooManyRequests,
		Err:       ErrRateLimited,
		Retryable: true,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether err is an AppError that allows the shopper to retry.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return errors.Is(err, ErrUpstream) || errors.Is(err, ErrServiceUnavail)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrIdentityMissing), errors.Is(err, ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCheckoutInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
