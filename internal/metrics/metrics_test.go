package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestRequestsCounter(t *testing.T) {
	var before, after dto.Metric
	if err := Requests.WithLabelValues(ResultHit).Write(&before); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	Requests.WithLabelValues(ResultHit).Inc()
	if err := Requests.WithLabelValues(ResultHit).Write(&after); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := after.GetCounter().GetValue() - before.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected delta 1, got %v", got)
	}
}

func TestEntriesGauge(t *testing.T) {
	Entries.WithLabelValues("active").Set(7)
	var m dto.Metric
	if err := Entries.WithLabelValues("active").Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.GetGauge().GetValue() != 7 {
		t.Fatalf("expected 7, got %v", m.GetGauge().GetValue())
	}
}
