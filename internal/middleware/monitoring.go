package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one record per completed request.
type RequestRecorder interface {
	RecordRequest(route string, latency time.Duration, isError bool)
}

// RequestMetrics records method, latency, and outcome for every request that
// matched a route. Unmatched paths are skipped so probes for random URLs do
// not pollute the counters.
func RequestMetrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			return
		}

		recorder.RecordRequest(
			c.Request.Method+" "+route,
			time.Since(start),
			c.Writer.Status() >= http.StatusBadRequest,
		)
	}
}
