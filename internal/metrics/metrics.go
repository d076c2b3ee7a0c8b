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
// ハンドラ層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRegistration()
	RecordReaction(isLike bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFail       prometheus.Counter
	registrations   prometheus.Counter
	reactions       *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "server_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "server_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "server_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "server_reactions_total",
			Help: "記録されたリアクションの種別ごとの合計数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "server_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "server_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.registrations,
		c.reactions,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordReaction はリアクションを種別付きで記録する。
func (c *Collector) RecordReaction(isLike bool) {
	kind := "dislike"
	if isLike {
		kind = "like"
	}
	c.reactions.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
