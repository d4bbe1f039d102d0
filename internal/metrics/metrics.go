// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 認証サービス、リクエストゲート、HTTPミドルウェアから利用する。
type Collector struct {
	logins           *prometheus.CounterVec
	callbackFailures *prometheus.CounterVec
	gateRejections   *prometheus.CounterVec
	rateLimited      prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	breakerState     *prometheus.GaugeVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fintrack_logins_total",
			Help: "ログイン成功数（new: 新規作成, existing: 既存ユーザー）",
		}, []string{"outcome"}),
		callbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fintrack_auth_callback_failures_total",
			Help: "OAuthコールバック失敗数（エラーコード別）",
		}, []string{"reason"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fintrack_gate_rejections_total",
			Help: "認証ゲートで拒否されたリクエスト数",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fintrack_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fintrack_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fintrack_http_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fintrack_circuit_breaker_state",
			Help: "サーキットブレーカーの状態（0=closed, 1=half-open, 2=open）",
		}, []string{"name"}),
	}

	reg.MustRegister(
		c.logins,
		c.callbackFailures,
		c.gateRejections,
		c.rateLimited,
		c.httpStatus,
		c.requestLatency,
		c.breakerState,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(newUser bool) {
	outcome := "existing"
	if newUser {
		outcome = "new"
	}
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordCallbackFailure はコールバック失敗をエラーコード別に記録する。
func (c *Collector) RecordCallbackFailure(reason string) {
	c.callbackFailures.WithLabelValues(reason).Inc()
}

// RecordGateRejection は認証ゲートでの拒否を記録する。
func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// SetBreakerState はサーキットブレーカーの状態を記録する。
func (c *Collector) SetBreakerState(name string, state float64) {
	c.breakerState.WithLabelValues(name).Set(state)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Pinger はヘルスチェック対象の依存（DB接続など）。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は依存先の疎通を確認するハンドラーを返す。
// 疎通できない場合は503を返す。
func HealthHandler(pinger Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if pinger != nil {
			if err := pinger.PingContext(ctx); err != nil {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
}

// SetupAdminRoutes は/metricsと/healthを提供する管理用HTTPハンドラーを返す。
// APIとは別のポートで公開し、認証ゲートの対象外とする。
func SetupAdminRoutes(gatherer prometheus.Gatherer, pinger Pinger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.Handle("GET /health", HealthHandler(pinger))
	return mux
}
