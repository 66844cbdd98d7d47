// Package monitoring 提供 Prometheus 监控指标。
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 文件指标
	FilesUploaded     prometheus.Counter
	FilesDeleted      prometheus.Counter
	UploadedBytes     prometheus.Counter
	UploadSize        prometheus.Histogram
	OrphansReclaimed  prometheus.Counter

	// 邮件队列指标
	EmailJobsQueued prometheus.Counter
	QueueDepth      *prometheus.GaugeVec

	// WebSocket 指标
	WebSocketClients prometheus.Gauge

	// 系统指标
	SystemUptime prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neonbrush_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neonbrush_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neonbrush_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neonbrush_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 文件指标
		FilesUploaded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "neonbrush_files_uploaded_total",
				Help: "Total number of files uploaded",
			},
		),

		FilesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "neonbrush_files_deleted_total",
				Help: "Total number of files deleted",
			},
		),

		UploadedBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "neonbrush_uploaded_bytes_total",
				Help: "Total bytes of uploaded file content",
			},
		),

		UploadSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "neonbrush_upload_size_bytes",
				Help:    "Uploaded file size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		OrphansReclaimed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "neonbrush_metadata_orphans_reclaimed_total",
				Help: "Total number of orphaned metadata records removed",
			},
		),

		// 邮件队列指标
		EmailJobsQueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "neonbrush_email_jobs_queued_total",
				Help: "Total number of email jobs queued",
			},
		),

		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "neonbrush_email_queue_depth",
				Help: "Number of email jobs in the queue by status",
			},
			[]string{"status"},
		),

		// WebSocket 指标
		WebSocketClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "neonbrush_websocket_clients",
				Help: "Number of connected WebSocket clients",
			},
		),

		// 系统指标
		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "neonbrush_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neonbrush_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "neonbrush_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordFileUploaded 记录文件上传
func (m *Metrics) RecordFileUploaded(size int64) {
	m.FilesUploaded.Inc()
	m.UploadedBytes.Add(float64(size))
	m.UploadSize.Observe(float64(size))
}

// RecordFileDeleted 记录文件删除
func (m *Metrics) RecordFileDeleted() {
	m.FilesDeleted.Inc()
}

// RecordOrphanReclaimed 记录孤儿元数据清理
func (m *Metrics) RecordOrphanReclaimed() {
	m.OrphansReclaimed.Inc()
}

// RecordEmailJobQueued 记录邮件任务入队
func (m *Metrics) RecordEmailJobQueued() {
	m.EmailJobsQueued.Inc()
}

// UpdateQueueDepth 更新队列各状态任务数
func (m *Metrics) UpdateQueueDepth(status string, count int) {
	m.QueueDepth.WithLabelValues(status).Set(float64(count))
}

// UpdateWebSocketClients 更新在线客户端数
func (m *Metrics) UpdateWebSocketClients(count int) {
	m.WebSocketClients.Set(float64(count))
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
