package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	metricFamilies, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.registry == nil {
		t.Error("Registry is nil")
	}
	if m.ToolCallsTotal == nil || m.ToolCallDuration == nil || m.ToolCallErrors == nil {
		t.Error("tool metrics not initialized")
	}
	if m.UpstreamRequestsTotal == nil || m.UpstreamRequestDuration == nil {
		t.Error("upstream metrics not initialized")
	}
	if m.StoreMutationsTotal == nil || m.StorePersistDuration == nil {
		t.Error("store metrics not initialized")
	}
	if m.SessionsActive == nil || m.SessionsTotal == nil {
		t.Error("session metrics not initialized")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.RecordToolCall("api", "", 10*time.Millisecond)
	m.RecordToolCall("api", "timeout", time.Second)
	m.RecordUpstream("GET", "2xx", 5*time.Millisecond)
	m.RecordStoreMutation("add", true, time.Millisecond)
	m.SessionOpened("websocket")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"apibridge_tool_calls_total",
		"apibridge_tool_call_duration_seconds",
		"apibridge_tool_call_errors_total",
		"apibridge_upstream_requests_total",
		"apibridge_store_mutations_total",
		"apibridge_sessions_active",
		"apibridge_descriptors_enabled",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestToolCallMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordToolCall("builtin", "", time.Millisecond)
	m.RecordToolCall("api", "upstream_status", time.Millisecond)
	m.RecordToolCall("api", "upstream_status", time.Millisecond)

	mf := findFamily(t, m, "apibridge_tool_call_errors_total")
	if mf == nil {
		t.Fatal("apibridge_tool_call_errors_total metric not found")
	}
	if got := mf.Metric[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("Expected 2 errors, got %f", got)
	}

	mf = findFamily(t, m, "apibridge_tool_calls_total")
	if mf == nil || len(mf.Metric) != 2 {
		t.Fatal("expected one series per kind/status pair")
	}
}

func TestDescriptorCounts(t *testing.T) {
	m := NewMetrics()
	m.SetDescriptorCounts(3, 1)

	enabled := findFamily(t, m, "apibridge_descriptors_enabled")
	disabled := findFamily(t, m, "apibridge_descriptors_disabled")
	if enabled == nil || disabled == nil {
		t.Fatal("descriptor gauges not found")
	}
	if got := enabled.Metric[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("Expected 3 enabled, got %f", got)
	}
	if got := disabled.Metric[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("Expected 1 disabled, got %f", got)
	}
}

func TestSessionMetrics(t *testing.T) {
	m := NewMetrics()

	m.SessionOpened("http")
	m.SessionOpened("websocket")
	m.SessionClosed()

	mf := findFamily(t, m, "apibridge_sessions_active")
	if mf == nil {
		t.Fatal("apibridge_sessions_active metric not found")
	}
	if got := mf.Metric[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("Expected 1 active session, got %f", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	m.RecordRPC("ping", "stdio")
	m.RecordToolList()
	m.RecordToolCall("api", "", time.Millisecond)
	m.RecordUpstream("GET", "2xx", time.Millisecond)
	m.RecordStoreMutation("add", true, time.Millisecond)
	m.ObserveStorePersist(time.Millisecond)
	m.SetDescriptorCounts(1, 1)
	m.SessionOpened("http")
	m.SessionClosed()
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.RecordToolList()
	m1.RecordToolList()
	m2.RecordToolList()

	if got := findFamily(t, m1, "apibridge_tool_list_requests_total").Metric[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("m1: Expected value 2, got %f", got)
	}
	if got := findFamily(t, m2, "apibridge_tool_list_requests_total").Metric[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("m2: Expected value 1, got %f", got)
	}
}
