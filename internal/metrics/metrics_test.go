package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/clickup"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/middleware"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/relay"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/slack"
)

// TestRecordRelayStored_IncrementsCounter は保存カウンタが増加することを検証する。
func TestRecordRelayStored_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRelayStored()
	c.RecordRelayStored()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "bridge_relay_stored_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("relay_stored_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("bridge_relay_stored_total metric not found")
	}
}

// TestSetRelayEntries_SetsGauge はエントリ数ゲージが設定値を反映することを検証する。
func TestSetRelayEntries_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetRelayEntries(7)
	c.SetRelayEntries(3)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "bridge_relay_entries" {
			found = true
			val := mf.GetMetric()[0].GetGauge().GetValue()
			if val != 3 {
				t.Errorf("relay_entries = %v, want 3", val)
			}
		}
	}
	if !found {
		t.Error("bridge_relay_entries metric not found")
	}
}

// TestRecordRelayExpired_AddsCount は期限切れカウンタが件数分加算されることを検証する。
func TestRecordRelayExpired_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRelayExpired(4)
	c.RecordRelayExpired(1)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "bridge_relay_expired_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 5 {
				t.Errorf("relay_expired_total = %v, want 5", val)
			}
		}
	}
	if !found {
		t.Error("bridge_relay_expired_total metric not found")
	}
}

// TestRecordUpstreamRequest_IncrementsCounterWithLabel は上流カウンタがサービス別に増加することを検証する。
func TestRecordUpstreamRequest_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamRequest("clickup")
	c.RecordUpstreamRequest("clickup")
	c.RecordUpstreamRequest("slack")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "bridge_upstream_requests_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "clickup":
					if val != 2 {
						t.Errorf("upstream_requests_total{service=clickup} = %v, want 2", val)
					}
				case "slack":
					if val != 1 {
						t.Errorf("upstream_requests_total{service=slack} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("bridge_upstream_requests_total metric not found")
	}
}

// TestRecordUpstreamLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency("clickup", 100*time.Millisecond)
	c.RecordUpstreamLatency("clickup", 2*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "bridge_upstream_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("bridge_upstream_latency_seconds metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordRelayStored()
	c.RecordRelayConsumed()
	c.SetRelayEntries(1)
	c.RecordUpstreamRequest("slack")
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"bridge_relay_stored_total",
		"bridge_relay_consumed_total",
		"bridge_relay_entries",
		"bridge_upstream_requests_total",
		"bridge_http_status_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsInterfaces はCollectorが利用側パッケージの
// 各インターフェースを実装することを検証する。
func TestCollector_ImplementsInterfaces(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	var _ relay.Metrics = c
	var _ clickup.Metrics = c
	var _ slack.Metrics = c
	var _ middleware.StatusRecorder = c
}
