package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/pharmashift/pkg/model"
)

func TestHistogram_CumulativeBuckets(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("test_latency_seconds", "测试延迟", []string{"path"}, []float64{0.1, 1})

	h.Observe(0.05, "/a")
	h.Observe(0.5, "/a")
	h.Observe(5, "/a")

	var buf bytes.Buffer
	r.WriteTo(&buf)
	out := buf.String()

	assert.Contains(t, out, `test_latency_seconds_bucket{path="/a",le="0.1"} 1`)
	assert.Contains(t, out, `test_latency_seconds_bucket{path="/a",le="1"} 2`)
	assert.Contains(t, out, `test_latency_seconds_bucket{path="/a",le="+Inf"} 3`)
	assert.Contains(t, out, `test_latency_seconds_sum{path="/a"} 5.55`)
	assert.Contains(t, out, `test_latency_seconds_count{path="/a"} 3`)
}

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "测试计数", []string{"kind", "severity"})
	g := r.NewGauge("test_ratio", "测试比例", nil)

	c.Inc("hour_overrun", "high")
	c.Add(2, "hour_overrun", "high")
	g.Set(0.75)

	assert.Equal(t, 3.0, c.Value("hour_overrun", "high"))
	assert.Equal(t, 0.0, c.Value("hour_overrun", "critical"))

	var buf bytes.Buffer
	r.WriteTo(&buf)
	assert.Contains(t, buf.String(), `test_total{kind="hour_overrun",severity="high"} 3`)
	assert.Contains(t, buf.String(), "test_ratio 0.75")
	assert.Contains(t, buf.String(), "# TYPE test_total counter")
}

func TestRecordScheduleRun(t *testing.T) {
	r := GetRegistry()
	site := uuid.New()
	runsBefore := r.GetCounter(ScheduleRunsTotal).Value("success")
	conflictsBefore := r.GetCounter(ScheduleConflictsTotal).Value(string(model.ConflictHourOverrun), string(model.SeverityCritical))

	RecordScheduleRun(&model.RunResult{
		SiteID:        site,
		GlobalScore:   0.8,
		Breakdown:     model.ScoreBreakdown{Coverage: 0.9},
		ExecutionTime: 20 * time.Millisecond,
		Conflicts: []model.Conflict{
			{Kind: model.ConflictHourOverrun, Severity: model.SeverityCritical},
		},
	})

	assert.Equal(t, runsBefore+1, r.GetCounter(ScheduleRunsTotal).Value("success"))
	assert.Equal(t, conflictsBefore+1, r.GetCounter(ScheduleConflictsTotal).Value("hour_overrun", "critical"))
	assert.Equal(t, 0.8, r.GetGauge(ScheduleScore).Value(site.String()))
	assert.Equal(t, 0.9, r.GetGauge(ScheduleCoverage).Value(site.String()))
}

func TestHandler(t *testing.T) {
	RecordRequestMetrics(http.MethodPost, "/api/v1/schedule/generate", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(),
		`pharmashift_http_requests_total{method="POST",path="/api/v1/schedule/generate",status="200"}`)
	assert.Contains(t, rec.Body.String(), "# TYPE pharmashift_http_request_duration_seconds histogram")
}
