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
// スイープエンジンとHTTPミドルウェアから利用する。
type Collector struct {
	sweepRuns      prometheus.Counter
	accountsLocked prometheus.Counter
	lockFailures   prometheus.Counter
	sweepDuration  prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockgate_sweep_runs_total",
			Help: "スイープ実行の合計数",
		}),
		accountsLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockgate_accounts_locked_total",
			Help: "期限切れによりロックされたアカウントの合計数",
		}),
		lockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockgate_lock_failures_total",
			Help: "ロック適用失敗の合計数",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockgate_sweep_duration_seconds",
			Help:    "スイープ1回の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sweepRuns,
		c.accountsLocked,
		c.lockFailures,
		c.sweepDuration,
		c.httpStatus,
	)

	return c
}

// RecordSweepRun はスイープ実行を記録する。
func (c *Collector) RecordSweepRun() {
	c.sweepRuns.Inc()
}

// RecordAccountLocked は期限切れアカウントのロックを記録する。
func (c *Collector) RecordAccountLocked() {
	c.accountsLocked.Inc()
}

// RecordLockFailure はロック適用の失敗を記録する。
func (c *Collector) RecordLockFailure() {
	c.lockFailures.Inc()
}

// RecordSweepDuration はスイープの所要時間を記録する。
func (c *Collector) RecordSweepDuration(d time.Duration) {
	c.sweepDuration.Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
