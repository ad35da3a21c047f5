package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIncCounter_CreatesAndIncrements(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	tags := map[string]string{"operation": "verify_customer", "status": "success"}
	recorder.IncCounter(context.Background(), "membergate.verify_customer.total", 1, tags)
	recorder.IncCounter(context.Background(), "membergate.verify_customer.total", 2, tags)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != "membergate_verify_customer_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	if total != 3 {
		t.Fatalf("expected counter value 3, got %v", total)
	}
}

func TestIncCounter_DropsHighCardinalityTags(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	recorder.IncCounter(context.Background(), "membergate.verify_customer.total", 1, map[string]string{
		"operation": "verify_customer",
		"status":    "success",
		"email":     "maria@example.com",
	})

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "email" {
					t.Fatalf("expected email tag to be dropped from labels")
				}
			}
		}
	}
}

func TestObserveHistogram_RecordsSamples(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	tags := map[string]string{"operation": "verify_customer", "status": "success"}
	recorder.ObserveHistogram(context.Background(), "membergate.verify_customer.duration_ms", 12.5, tags)
	recorder.ObserveHistogram(context.Background(), "membergate.verify_customer.duration_ms", 40, tags)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() != "membergate_verify_customer_duration_ms" {
			continue
		}
		found = true
		for _, metric := range family.GetMetric() {
			if count := metric.GetHistogram().GetSampleCount(); count != 2 {
				t.Fatalf("expected 2 samples, got %d", count)
			}
		}
	}
	if !found {
		t.Fatalf("expected histogram family to be registered")
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	recorder := NewPrometheusRecorder(prometheus.NewRegistry())
	recorder.IncCounter(context.Background(), "membergate.webhook.total", 1, map[string]string{
		"operation": "record_webhook",
		"status":    "success",
	})

	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	response := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
	if !strings.Contains(response.Body.String(), "membergate_webhook_total") {
		t.Fatalf("expected exposition to contain counter, got %q", response.Body.String())
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"membergate.verify_customer.total": "membergate_verify_customer_total",
		"  Membergate.Login.Total ":        "membergate_login_total",
		"":                                 "",
	}
	for input, want := range cases {
		if got := sanitizeName(input); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", input, got, want)
		}
	}
}
