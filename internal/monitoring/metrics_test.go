package monitoring

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Run("可以重复构造互不冲突", func(t *testing.T) {
		first := NewMetrics()
		require.NotNil(t, first)

		assert.NotPanics(t, func() {
			second := NewMetrics()
			second.RecordMailboxCreated()
		})
	})

	t.Run("处理器暴露本实例的指标", func(t *testing.T) {
		m := NewMetrics()
		m.RecordPollCycle("updated")
		m.RecordStaleResult("poll")
		m.RecordProviderRequest("list_messages", 50*time.Millisecond, nil)

		w := httptest.NewRecorder()
		m.HTTPHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

		body := w.Body.String()
		assert.Contains(t, body, `nexusmail_poll_cycles_total{outcome="updated"} 1`)
		assert.Contains(t, body, `nexusmail_stale_results_total{kind="poll"} 1`)
		assert.Contains(t, body, `nexusmail_provider_requests_total{operation="list_messages"} 1`)
	})

	t.Run("提供商错误单独计数", func(t *testing.T) {
		m := NewMetrics()
		m.RecordProviderRequest("get_message", time.Millisecond, assert.AnError)

		w := httptest.NewRecorder()
		m.HTTPHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

		assert.Contains(t, w.Body.String(),
			`nexusmail_provider_errors_total{operation="get_message"} 1`)
	})
}
