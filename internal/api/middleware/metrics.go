package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector counts requests, error responses and in-flight requests.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64
	inFlight     atomic.Int64
	serverErrors atomic.Int64
}

func NewMetricsCollector(requestCount, errorCount *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
	}
}

// InFlight is the number of requests currently being served, open streams
// included.
func (mc *MetricsCollector) InFlight() int64 {
	return mc.inFlight.Load()
}

// ServerErrors counts 5xx responses only.
func (mc *MetricsCollector) ServerErrors() int64 {
	return mc.serverErrors.Load()
}

// Middleware counts every request; 4xx and 5xx responses also count as errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)
		mc.inFlight.Add(1)
		defer mc.inFlight.Add(-1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
		if rw.statusCode >= 500 {
			mc.serverErrors.Add(1)
		}
	})
}
