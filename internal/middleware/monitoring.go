package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nexusmail/agent/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}

// BusinessMetrics 业务指标中间件
func BusinessMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		switch c.FullPath() {
		case "/v1/mailboxes", "/v1/mailboxes/custom":
			if c.Request.Method == "POST" {
				metrics.RecordMailboxCreated()
			}
		case "/v1/mailboxes/:id":
			if c.Request.Method == "DELETE" {
				metrics.RecordMailboxDeleted()
			}
		case "/v1/messages/:id":
			if c.Request.Method == "GET" {
				metrics.RecordDetailFetch()
			}
		}
	}
}
