package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAPIErrorDecodesBody(t *testing.T) {
	err := NewAPIError(http.StatusForbidden, []byte(`{"error":"invalid_access","error_code":403,"error_description":"No access to thread"}`))
	require.Equal(t, "invalid_access", err.Code)
	require.Equal(t, 403, err.ErrorCode)
	require.Equal(t, "No access to thread", err.Description)
	require.Equal(t, "api error 403 (invalid_access): No access to thread", err.Error())
}

func TestNewAPIErrorMalformedBody(t *testing.T) {
	err := NewAPIError(http.StatusBadGateway, []byte("<html>oops</html>"))
	require.Equal(t, "bad_gateway", err.Code)
	require.Equal(t, http.StatusBadGateway, err.ErrorCode)
	require.Empty(t, err.Description)
}

func TestIsRateLimited(t *testing.T) {
	require.True(t, IsRateLimited(&APIError{StatusCode: http.StatusTooManyRequests}))
	require.True(t, IsRateLimited(&APIError{StatusCode: http.StatusServiceUnavailable, Description: "Over Rate Limit"}))
	require.True(t, IsRateLimited(fmt.Errorf("fetch folder: %w", &APIError{StatusCode: 503, Code: "over_rate_limit"})))
	require.True(t, IsRateLimited(errors.New("upstream said: rate limit exceeded")))

	require.False(t, IsRateLimited(nil))
	require.False(t, IsRateLimited(&APIError{StatusCode: http.StatusNotFound, Code: "not_found"}))
	require.False(t, IsRateLimited(errors.New("connection reset by peer")))
}

func TestValidateID(t *testing.T) {
	require.NoError(t, ValidateID("thread", "AbCdEfGhIjK"))
	require.NoError(t, ValidateID("thread", "AbCdEfGhIjKl"))

	for _, id := range []string{"", "   ", "short", "waytoolongidentifier", "AbCdEf-hIjK"} {
		err := ValidateID("thread", id)
		require.ErrorIs(t, err, ErrInvalidID, id)
	}
}
