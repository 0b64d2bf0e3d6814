package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
)

const maxErrorBody = 1 << 20

// upstreamErrorBody covers the error shapes returned by the order-creation
// endpoint (`{"error": "..."}`) and the storefront AJAX API
// (`{"status": 422, "message": "...", "description": "..."}`).
type upstreamErrorBody struct {
	Error       json.RawMessage `json:"error"`
	Message     string          `json:"message"`
	Description string          `json:"description"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and turns it
// into a retryable apperrors.Upstream error carrying the status and the most
// specific message the body offers. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	return apperrors.Upstream(serviceName, resp.StatusCode, errorMessage(bodyBytes))
}

// errorMessage extracts a human readable message, falling back to the raw body.
func errorMessage(body []byte) string {
	var parsed upstreamErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		if len(parsed.Error) > 0 {
			var s string
			if json.Unmarshal(parsed.Error, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if parsed.Description != "" {
			return parsed.Description
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// DecodeJSON decodes a 2xx response body into dst and closes it. Any other
// status is turned into an upstream error via ParseResponseError.
func DecodeJSON(resp *http.Response, serviceName string, dst any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody*8)).Decode(dst); err != nil {
		return apperrors.Upstream(serviceName, resp.StatusCode, fmt.Sprintf("malformed response: %v", err))
	}
	return nil
}

// Drain closes a response whose body the caller does not need.
func Drain(resp *http.Response, serviceName string) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, serviceName)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var upErr *apperrors.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	return 0
}
