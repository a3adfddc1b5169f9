package telemetry_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"singalong/internal/telemetry"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	telemetry.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	return string(body)
}

func TestObserveQueueSetsGauges(t *testing.T) {
	telemetry.ObserveQueue("gauge-test", 3, true)
	text := scrape(t)
	for _, want := range []string{
		`singalong_queue_depth{family="gauge-test"} 3`,
		`singalong_jobs_active{family="gauge-test"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}

	telemetry.ObserveQueue("gauge-test", 0, false)
	if !strings.Contains(scrape(t), `singalong_jobs_active{family="gauge-test"} 0`) {
		t.Fatal("expected active flag cleared")
	}
}

func TestHandlerServesCounters(t *testing.T) {
	telemetry.JobsEnqueued.WithLabelValues("handler-test").Inc()
	telemetry.ObserveFinished("handler-test", false, 2)

	text := scrape(t)
	for _, want := range []string{
		`singalong_jobs_enqueued_total{family="handler-test"} 1`,
		`singalong_jobs_finished_total{family="handler-test",outcome="failure"} 1`,
		`singalong_job_duration_seconds_count{family="handler-test"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
