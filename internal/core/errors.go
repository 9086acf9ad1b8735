package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-success response translated from the service error body.
type APIError struct {
	StatusCode  int    `json:"status_code"`
	Code        string `json:"error"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	msg := fmt.Sprintf("api error %d (%s)", e.StatusCode, e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// NewAPIError decodes an error body. A missing or malformed body yields an
// error coded from the HTTP status with an empty description.
func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var payload struct {
		Error       string `json:"error"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"error_description"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		apiErr.Code = payload.Error
		apiErr.ErrorCode = payload.ErrorCode
		apiErr.Description = payload.Description
	}

	if apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(statusCode), " ", "_"))
		if apiErr.Code == "" {
			apiErr.Code = "unknown_error"
		}
	}
	if apiErr.ErrorCode == 0 {
		apiErr.ErrorCode = statusCode
	}

	return apiErr
}

var rateLimitMarkers = []string{"rate limit", "rate_limit", "rate-limit", "ratelimit"}

// IsRateLimited reports whether err signals quota exhaustion: an HTTP 429 or
// an error whose description or message carries a rate-limit marker.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if containsRateLimitMarker(apiErr.Description) || containsRateLimitMarker(apiErr.Code) {
			return true
		}
	}

	return containsRateLimitMarker(err.Error())
}

func containsRateLimitMarker(value string) bool {
	lower := strings.ToLower(value)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
