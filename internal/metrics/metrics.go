// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 利用側パッケージ（relay, clickup, slack, middleware）がそれぞれ
// 必要なメソッドだけのインターフェースを定義し、Collectorが全てを満たす。
type Collector struct {
	relayStored     prometheus.Counter
	relayConsumed   prometheus.Counter
	relayExpired    prometheus.Counter
	relayEntries    prometheus.Gauge
	upstreamReqs    *prometheus.CounterVec
	upstreamFails   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		relayStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_relay_stored_total",
			Help: "中継ストアに保存された資格情報の合計数",
		}),
		relayConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_relay_consumed_total",
			Help: "中継ストアから取り出された資格情報の合計数",
		}),
		relayExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_relay_expired_total",
			Help: "期限切れで破棄された資格情報の合計数",
		}),
		relayEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_relay_entries",
			Help: "中継ストアの現在のエントリ数",
		}),
		upstreamReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_upstream_requests_total",
			Help: "上流サービス別のリクエスト合計数",
		}, []string{"service"}),
		upstreamFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_upstream_failures_total",
			Help: "上流サービス別の失敗合計数",
		}, []string{"service"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_upstream_latency_seconds",
			Help:    "上流サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.relayStored,
		c.relayConsumed,
		c.relayExpired,
		c.relayEntries,
		c.upstreamReqs,
		c.upstreamFails,
		c.upstreamLatency,
		c.httpStatus,
	)

	return c
}

// RecordRelayStored は中継ストアへの保存を記録する。
func (c *Collector) RecordRelayStored() {
	c.relayStored.Inc()
}

// RecordRelayConsumed は中継ストアからの取り出しを記録する。
func (c *Collector) RecordRelayConsumed() {
	c.relayConsumed.Inc()
}

// RecordRelayExpired は期限切れエントリの破棄を記録する。
func (c *Collector) RecordRelayExpired(count int) {
	c.relayExpired.Add(float64(count))
}

// SetRelayEntries は中継ストアの現在のエントリ数を記録する。
func (c *Collector) SetRelayEntries(count int) {
	c.relayEntries.Set(float64(count))
}

// RecordUpstreamRequest は上流サービスへのリクエストを記録する。
func (c *Collector) RecordUpstreamRequest(service string) {
	c.upstreamReqs.WithLabelValues(service).Inc()
}

// RecordUpstreamFailure は上流サービスの失敗を記録する。
func (c *Collector) RecordUpstreamFailure(service string) {
	c.upstreamFails.WithLabelValues(service).Inc()
}

// RecordUpstreamLatency は上流サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(service string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
