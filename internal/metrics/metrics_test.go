package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mf := gatherFamily(t, reg, name)
	if mf == nil {
		t.Fatalf("metric %s not found", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func TestRecordSyncOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess(100 * time.Millisecond)
	c.RecordSyncSuccess(200 * time.Millisecond)
	c.RecordSyncFailure(50 * time.Millisecond)
	c.RecordSyncSkipped()

	if got := counterValue(t, reg, "libresync_sync_success_total"); got != 2 {
		t.Errorf("sync_success_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "libresync_sync_failure_total"); got != 1 {
		t.Errorf("sync_failure_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "libresync_sync_skipped_total"); got != 1 {
		t.Errorf("sync_skipped_total = %v, want 1", got)
	}

	mf := gatherFamily(t, reg, "libresync_sync_duration_seconds")
	if mf == nil {
		t.Fatal("duration histogram not found")
	}
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("duration sample count = %d, want 3", h.GetSampleCount())
	}
}

func TestRecordTimestampSource(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTimestampSource("pattern")
	c.RecordTimestampSource("pattern")
	c.RecordTimestampSource("clock")

	mf := gatherFamily(t, reg, "libresync_timestamp_source_total")
	if mf == nil {
		t.Fatal("timestamp source counter not found")
	}
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch label {
		case "pattern":
			if val != 2 {
				t.Errorf("timestamp_source_total{source=pattern} = %v, want 2", val)
			}
		case "clock":
			if val != 1 {
				t.Errorf("timestamp_source_total{source=clock} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

func TestGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	at := time.Date(2024, 3, 21, 14, 5, 30, 0, time.UTC)
	c.SetBreakerState(2)
	c.SetLastReading(104, at)

	mf := gatherFamily(t, reg, "libresync_breaker_state")
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("breaker_state = %v, want 2", got)
	}
	mf = gatherFamily(t, reg, "libresync_last_reading_mg_per_dl")
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 104 {
		t.Errorf("last_reading_mg_per_dl = %v, want 104", got)
	}
	mf = gatherFamily(t, reg, "libresync_last_reading_timestamp_seconds")
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != float64(at.Unix()) {
		t.Errorf("last_reading_timestamp_seconds = %v, want %v", got, float64(at.Unix()))
	}
}

func TestHandlerServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess(time.Second)
	c.RecordWearableFailure()
	c.RecordLogin("success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{
		"libresync_sync_success_total",
		"libresync_wearable_failure_total",
		"libresync_login_attempts_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response body does not contain %q", name)
		}
	}
}

func TestCollectorImplementsRecorder(t *testing.T) {
	var _ Recorder = NewCollector(prometheus.NewRegistry())
	var _ Recorder = Nop{}
}
