package middleware

import (
	"net/http"
	"time"

	"github.com/North004/Server/internal/metrics"
)

// NewMetricsMiddleware はレスポンスのステータスコードと処理時間を
// Prometheusメトリクスに記録するミドルウェアを返す。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestDuration(time.Since(start))
		})
	}
}
