package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
	"github.com/quipkit/quipkit/internal/observability"
)

// Envelope codes.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeInternal         = "INTERNAL_ERROR"
	CodeCanceled         = "CANCELED"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

// FromError converts any error raised by the client into an envelope. API
// errors keep their service code, HTTP status and description as context.
func FromError(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return nil
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return EnsureCorrelationID(envelope, ctx)
	}

	var (
		apiErr  *core.APIError
		givenUp *engine.GivenUpError
	)

	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		envelope = errors.NewErrorEnvelope(CodeCanceled, "operation canceled")
	case stderrors.Is(err, core.ErrInvalidID):
		envelope = errors.NewErrorEnvelope(CodeInvalidInput, err.Error())
	case stderrors.As(err, &givenUp):
		envelope = errors.NewErrorEnvelope(CodeRateLimited, "rate limited; retries exhausted")
		envelope = withContext(envelope, map[string]interface{}{"attempts": givenUp.Attempts})
	case stderrors.As(err, &apiErr):
		envelope = errors.NewErrorEnvelope(codeForAPIError(apiErr), apiMessage(apiErr))
		envelope = withContext(envelope, map[string]interface{}{
			"api_error":   apiErr.Code,
			"http_status": apiErr.StatusCode,
			"error_code":  apiErr.ErrorCode,
		})
	case core.IsRateLimited(err):
		envelope = errors.NewErrorEnvelope(CodeRateLimited, err.Error())
	default:
		envelope = errors.NewErrorEnvelope(CodeInternal, err.Error())
	}

	envelope = withWrappedError(envelope, err)
	return EnsureCorrelationID(envelope, ctx)
}

func codeForAPIError(apiErr *core.APIError) string {
	if core.IsRateLimited(apiErr) {
		return CodeRateLimited
	}
	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		return CodeInvalidInput
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	default:
		if apiErr.StatusCode >= 500 {
			return CodeExternalService
		}
		return CodeInternal
	}
}

func apiMessage(apiErr *core.APIError) string {
	if apiErr.Description != "" {
		return apiErr.Description
	}
	return apiErr.Code
}

// ExitCodeFor maps an error to a foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	if err == nil {
		return 0
	}

	var code string
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		code = envelope.Code
	} else {
		code = FromError(context.Background(), err).Code
	}

	switch code {
	case CodeUnauthorized, CodeForbidden, CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case CodeNotFound:
		return foundry.ExitFileNotFound
	case CodeRateLimited, CodeExternalService:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// EnsureCorrelationID attaches a correlation ID to the envelope, taken from
// the request context when one is available.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}

	correlationID := ""
	if ctx != nil {
		correlationID = chimw.GetReqID(ctx)
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromCode resolves the HTTP status corresponding to an envelope code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func withContext(envelope *errors.ErrorEnvelope, data map[string]interface{}) *errors.ErrorEnvelope {
	updated, err := envelope.WithContext(data)
	if err != nil {
		return envelope
	}
	return updated
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}
	return withContext(envelope, map[string]interface{}{"wrapped_error": err.Error()})
}

// HTTPErrorDetail is the error body returned by the status server.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError writes err as a JSON error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}

	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	envelope := FromError(ctx, err)
	if envelope == nil {
		envelope = EnsureCorrelationID(NewInternalError("unexpected nil error"), ctx)
	}
	status := HTTPStatusFromCode(envelope.Code)

	if logger := observability.ServerLogger; logger != nil {
		logger.Warn(envelope.Message,
			zap.String("error_code", envelope.Code),
			zap.Int("http_status", status),
			zap.String("request_id", envelope.CorrelationID))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Context,
			RequestID: envelope.CorrelationID,
		},
	})
}
