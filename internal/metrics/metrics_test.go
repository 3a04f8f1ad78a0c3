package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(b)
}

func TestWithMetrics(t *testing.T) {
	m := New()

	h := m.WithMetrics("/transcribe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		_, _ = w.Write([]byte("ok"))
	}))

	for _, u := range []string{"/transcribe", "/transcribe", "/transcribe?fail=1"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, u, nil))
	}

	out := scrape(t, m)
	require.Contains(t, out, `speech_relay_http_requests_total{code="200",route="/transcribe"} 2`)
	require.Contains(t, out, `speech_relay_http_requests_total{code="400",route="/transcribe"} 1`)
}

func TestRecordUpstreamCall(t *testing.T) {
	m := New()

	m.RecordUpstreamCall("stt", time.Now(), nil)
	m.RecordUpstreamCall("stt", time.Now(), errors.New("failed"))

	out := scrape(t, m)
	require.Contains(t, out, `speech_relay_upstream_failures_total{service="stt"} 1`)
	require.Contains(t, out, `speech_relay_upstream_duration_seconds_count{service="stt"} 2`)
}

func TestRecordPipelineRun(t *testing.T) {
	m := New()
	m.RecordPipelineRun("done")

	require.Contains(t, scrape(t, m), `speech_relay_pipeline_runs_total{state="done"} 1`)
}
