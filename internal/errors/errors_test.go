package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
)

func TestFromErrorAPIError(t *testing.T) {
	err := fmt.Errorf("get thread: %w", &core.APIError{StatusCode: 404, Code: "not_found", ErrorCode: 404, Description: "Thread not found"})

	envelope := FromError(context.Background(), err)
	require.NotNil(t, envelope)
	assert.Equal(t, CodeNotFound, envelope.Code)
	assert.Equal(t, "Thread not found", envelope.Message)
	assert.Equal(t, 404, envelope.Context["http_status"])
	assert.Equal(t, "not_found", envelope.Context["api_error"])
	assert.NotEmpty(t, envelope.CorrelationID)
}

func TestFromErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
		exit foundry.ExitCode
	}{
		{"rate limited", &core.APIError{StatusCode: 503, Code: "over_rate_limit"}, CodeRateLimited, foundry.ExitExternalServiceUnavailable},
		{"given up", &engine.GivenUpError{Attempts: 3, Err: errors.New("over rate limit")}, CodeRateLimited, foundry.ExitExternalServiceUnavailable},
		{"unauthorized", &core.APIError{StatusCode: 401, Code: "invalid_token"}, CodeUnauthorized, foundry.ExitConfigInvalid},
		{"server error", &core.APIError{StatusCode: 502, Code: "bad_gateway"}, CodeExternalService, foundry.ExitExternalServiceUnavailable},
		{"invalid id", core.ValidateID("thread", "x"), CodeInvalidInput, foundry.ExitFailure},
		{"canceled", context.Canceled, CodeCanceled, foundry.ExitFailure},
		{"other", errors.New("boom"), CodeInternal, foundry.ExitFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := FromError(context.Background(), tc.err)
			require.NotNil(t, envelope)
			assert.Equal(t, tc.code, envelope.Code)
			assert.Equal(t, tc.exit, ExitCodeFor(tc.err))
		})
	}
}

func TestFromErrorNil(t *testing.T) {
	assert.Nil(t, FromError(context.Background(), nil))
	assert.Equal(t, foundry.ExitCode(0), ExitCodeFor(nil))
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ratelimit", nil)

	RespondWithError(rec, req, NewNotFoundError("nothing here"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, rec.Body.String(), `"request_id"`)
}
