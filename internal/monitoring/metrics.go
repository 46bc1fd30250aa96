package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标。
// 指标注册在自己的 registry 上，进程内可以安全地多次构造。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter
	MailboxesHeld    prometheus.Gauge

	// 同步指标
	PollCyclesTotal    *prometheus.CounterVec
	StaleResultsTotal  *prometheus.CounterVec
	InboxMessages      prometheus.Gauge
	DetailFetchesTotal prometheus.Counter

	// 提供商指标
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderErrorsTotal     *prometheus.CounterVec

	// 连接指标
	WebSocketClients prometheus.Gauge

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexusmail_mailboxes_created_total",
				Help: "Total number of mailboxes provisioned",
			},
		),

		MailboxesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexusmail_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted",
			},
		),

		MailboxesHeld: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexusmail_mailboxes_held",
				Help: "Number of mailboxes currently held in the store",
			},
		),

		PollCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusmail_poll_cycles_total",
				Help: "Total number of inbox poll cycles",
			},
			[]string{"outcome"},
		),

		StaleResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusmail_stale_results_total",
				Help: "Total number of stale async results discarded",
			},
			[]string{"kind"},
		),

		InboxMessages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexusmail_inbox_messages",
				Help: "Number of messages in the active inbox",
			},
		),

		DetailFetchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexusmail_detail_fetches_total",
				Help: "Total number of message detail fetches",
			},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusmail_provider_requests_total",
				Help: "Total number of provider API requests",
			},
			[]string{"operation"},
		),

		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusmail_provider_request_duration_seconds",
				Help:    "Provider API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ProviderErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusmail_provider_errors_total",
				Help: "Total number of provider API errors",
			},
			[]string{"operation"},
		),

		WebSocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexusmail_websocket_clients",
				Help: "Number of connected WebSocket clients",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexusmail_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱开通
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordPollCycle 记录一次轮询结果
func (m *Metrics) RecordPollCycle(outcome string) {
	m.PollCyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleResult 记录一次被丢弃的过期结果
func (m *Metrics) RecordStaleResult(kind string) {
	m.StaleResultsTotal.WithLabelValues(kind).Inc()
}

// RecordDetailFetch 记录详情拉取
func (m *Metrics) RecordDetailFetch() {
	m.DetailFetchesTotal.Inc()
}

// RecordProviderRequest 记录提供商请求
func (m *Metrics) RecordProviderRequest(operation string, duration time.Duration, err error) {
	m.ProviderRequestsTotal.WithLabelValues(operation).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateMailboxesHeld 更新持有的邮箱数
func (m *Metrics) UpdateMailboxesHeld(count int) {
	m.MailboxesHeld.Set(float64(count))
}

// UpdateInboxMessages 更新当前收件箱消息数
func (m *Metrics) UpdateInboxMessages(count int) {
	m.InboxMessages.Set(float64(count))
}

// UpdateWebSocketClients 更新 WebSocket 连接数
func (m *Metrics) UpdateWebSocketClients(count int) {
	m.WebSocketClients.Set(float64(count))
}

// HTTPHandler 返回暴露本实例 registry 的处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
