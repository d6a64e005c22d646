package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はサービスが公開する Prometheus メトリクスの集合です。
type Metrics struct {
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	queryDuration       *prometheus.HistogramVec
	handoverDecisions   *prometheus.CounterVec
}

// NewMetrics はメトリクスを生成し、指定されたレジストリへ登録します。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Storage call latencies in seconds.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15},
		}, []string{"op", "outcome"}),
		handoverDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handover_decisions_total",
			Help: "Cash handover decisions by type and outcome.",
		}, []string{"decision", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration, m.queryDuration, m.handoverDecisions)
	}
	return m
}

// ObserveQuery はストレージ呼び出し 1 回分の所要時間を記録します。
func (m *Metrics) ObserveQuery(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queryDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// ObserveDecision は承認 / 却下の結果を数えます。
func (m *Metrics) ObserveDecision(decision, outcome string) {
	if m == nil {
		return
	}
	m.handoverDecisions.WithLabelValues(decision, outcome).Inc()
}

// Instrument は RPS / レイテンシ / 処理中リクエスト数を計測するミドルウェアです。
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// Handler は Prometheus のスクレイプ用ハンドラーを返します。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
