package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
	"github.com/quipkit/quipkit/internal/export"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestAttachTracksCoordinatorUpdates(t *testing.T) {
	m := New()
	coordinator := engine.NewCoordinator()
	now := time.Unix(1_700_000_000, 0).UTC()
	coordinator.Clock = func() time.Time { return now }

	detach := m.Attach(coordinator)
	coordinator.Update("50", "3", "1700000010", core.WindowMinute)

	body := scrape(t, m)
	assert.Contains(t, body, `quipkit_ratelimit_limit{window="minute"} 50`)
	assert.Contains(t, body, `quipkit_ratelimit_remaining{window="minute"} 3`)
	assert.Contains(t, body, `quipkit_ratelimit_reset_timestamp_seconds{window="minute"} 1.70000001e+09`)

	detach()
	coordinator.Update("50", "1", "1700000010", core.WindowMinute)
	assert.Contains(t, scrape(t, m), `quipkit_ratelimit_remaining{window="minute"} 3`)
}

func TestObserveDelay(t *testing.T) {
	m := New()
	m.Observe(engine.Event{Kind: engine.EventDelay, Delay: 2 * time.Second, Reason: core.ReasonApproaching})

	assert.Contains(t, scrape(t, m), `quipkit_ratelimit_delays_total{reason="Approaching rate limit"} 1`)
}

func TestRecordErrorOnlyCountsAPIErrors(t *testing.T) {
	m := New()
	m.RecordError(&core.APIError{StatusCode: 404, Code: "not_found"})
	m.RecordError(assert.AnError)

	body := scrape(t, m)
	assert.Contains(t, body, `quipkit_api_errors_total{error_code="not_found",http_status="404"} 1`)
}

func TestRecordExportAndHandler(t *testing.T) {
	m := New()
	m.RecordRetry()
	m.RecordExport(&export.Summary{FoldersVisited: 2, ThreadsDownloaded: 5, Failures: 1})

	body := scrape(t, m)
	assert.Contains(t, body, `quipkit_export_items{kind="thread",result="downloaded"} 5`)
	assert.Contains(t, body, "quipkit_retries_total 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRetry()
	m.RecordError(assert.AnError)
	m.Observe(engine.Event{})
	m.RecordExport(&export.Summary{})
	m.Attach(engine.NewCoordinator())()
}
