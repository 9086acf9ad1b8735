package metrics

import (
	"errors"
	"strconv"

	"github.com/quipkit/quipkit/internal/core"
)

// RecordError counts err when it is an API error response. Other errors are
// ignored.
func (m *Metrics) RecordError(err error) {
	if m == nil || err == nil {
		return
	}

	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	m.errorsTotal.WithLabelValues(apiErr.Code, strconv.Itoa(apiErr.StatusCode)).Inc()
}
