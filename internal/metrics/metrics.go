// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアとサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordAuthFailure(strategy string)
	RecordEventCreated()
	RecordGrantWrite(mode string)
	RecordCascadeDelete(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	authFailures   *prometheus.CounterVec
	eventsCreated  prometheus.Counter
	grantWrites    *prometheus.CounterVec
	cascadeDeletes *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examsched_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examsched_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examsched_auth_failure_total",
			Help: "認証失敗の合計数（ストラテジー別）",
		}, []string{"strategy"}),
		eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examsched_events_created_total",
			Help: "作成されたイベントの合計数",
		}),
		grantWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examsched_grant_writes_total",
			Help: "許可マトリクス書き込みの合計数（replace/toggle別）",
		}, []string{"mode"}),
		cascadeDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examsched_cascade_deletes_total",
			Help: "連鎖削除の合計数（location/practitioner別）",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.authFailures,
		c.eventsCreated,
		c.grantWrites,
		c.cascadeDeletes,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure(strategy string) {
	c.authFailures.WithLabelValues(strategy).Inc()
}

// RecordEventCreated はイベント作成を記録する。
func (c *Collector) RecordEventCreated() {
	c.eventsCreated.Inc()
}

// RecordGrantWrite は許可マトリクス書き込みを記録する。
func (c *Collector) RecordGrantWrite(mode string) {
	c.grantWrites.WithLabelValues(mode).Inc()
}

// RecordCascadeDelete は連鎖削除を記録する。
func (c *Collector) RecordCascadeDelete(kind string) {
	c.cascadeDeletes.WithLabelValues(kind).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを構成しない起動モードやテストで使う。
type NopCollector struct{}

func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordAuthFailure(string)           {}
func (NopCollector) RecordEventCreated()                {}
func (NopCollector) RecordGrantWrite(string)            {}
func (NopCollector) RecordCascadeDelete(string)         {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
