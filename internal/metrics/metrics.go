// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// signin結果のラベル値。
const (
	SigninResultSuccess            = "success"
	SigninResultInvalidCredentials = "invalid_credentials"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ワーカー、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignup()
	RecordSignin(result string)
	RecordSignout()
	RecordSessionExpired()
	RecordSessionsSwept(count int64)
	RecordTaskCreated()
	RecordTaskDeleted()
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups         prometheus.Counter
	signins         *prometheus.CounterVec
	signouts        prometheus.Counter
	sessionsExpired prometheus.Counter
	sessionsSwept   prometheus.Counter
	tasksCreated    prometheus.Counter
	tasksDeleted    prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_signups_total",
			Help: "ユーザー登録の合計数",
		}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_signins_total",
			Help: "サインイン試行の結果別の合計数",
		}, []string{"result"}),
		signouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_signouts_total",
			Help: "サインアウトの合計数",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_sessions_expired_total",
			Help: "認証時に期限切れと判定されたセッションの合計数",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_sessions_swept_total",
			Help: "定期処理で無効化されたセッションの合計数",
		}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_tasks_created_total",
			Help: "作成されたタスクの合計数",
		}),
		tasksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_tasks_deleted_total",
			Help: "削除されたタスクの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todoman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.signins,
		c.signouts,
		c.sessionsExpired,
		c.sessionsSwept,
		c.tasksCreated,
		c.tasksDeleted,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordSignup はユーザー登録を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordSignin はサインイン試行の結果を記録する。
func (c *Collector) RecordSignin(result string) {
	c.signins.WithLabelValues(result).Inc()
}

// RecordSignout はサインアウトを記録する。
func (c *Collector) RecordSignout() {
	c.signouts.Inc()
}

// RecordSessionExpired は期限切れセッションの検出を記録する。
func (c *Collector) RecordSessionExpired() {
	c.sessionsExpired.Inc()
}

// RecordSessionsSwept は一括無効化したセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordTaskCreated はタスク作成を記録する。
func (c *Collector) RecordTaskCreated() {
	c.tasksCreated.Inc()
}

// RecordTaskDeleted はタスク削除を記録する。
func (c *Collector) RecordTaskDeleted() {
	c.tasksDeleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordSignup() {}
func (NopCollector) RecordSignin(string) {}
func (NopCollector) RecordSignout() {}
func (NopCollector) RecordSessionExpired() {}
func (NopCollector) RecordSessionsSwept(int64) {}
func (NopCollector) RecordTaskCreated() {}
func (NopCollector) RecordTaskDeleted() {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestDuration(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
